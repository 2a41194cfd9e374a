package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentCommit is returned when two writers race to publish the
// same schema version.
var ErrConcurrentCommit = errors.New("schema: concurrent schema commit detected")

// DynamoDBClient is the subset of the DynamoDB API used by VersionStore.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// VersionStore tracks the current schema version in DynamoDB.
//
// Schema documents themselves live in a blob store; object stores lack the
// compare-and-swap needed to atomically repoint "current" when a retrain
// publishes a new schema. DynamoDB conditional writes provide it. Each
// commit records a monotonically increasing version and the blob name it
// points at.
//
// Table schema:
//   - Partition key: pool (string) - the logical pool identifier
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name quantpool-schemas \
//	  --attribute-definitions AttributeName=pool,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=pool,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type VersionStore struct {
	client    DynamoDBClient
	tableName string
	pool      string
}

// NewVersionStore creates a version store for one logical pool.
func NewVersionStore(client DynamoDBClient, tableName, pool string) *VersionStore {
	return &VersionStore{
		client:    client,
		tableName: tableName,
		pool:      pool,
	}
}

// Current returns the latest committed version and the schema blob name it
// points at. Version 0 with an empty name means nothing has been committed.
func (s *VersionStore) Current(ctx context.Context) (uint64, string, error) {
	resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pool = :pool"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pool": &types.AttributeValueMemberS{Value: s.pool},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("schema: query version: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("schema: invalid version attribute")
	}
	nameAttr, ok := item["schema_name"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("schema: invalid schema_name attribute")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("schema: parse version: %w", err)
	}
	return version, nameAttr.Value, nil
}

// Commit atomically publishes schemaName as the next version. It returns
// ErrConcurrentCommit when another writer published the same version first.
func (s *VersionStore) Commit(ctx context.Context, schemaName string) (uint64, error) {
	current, _, err := s.Current(ctx)
	if err != nil {
		return 0, err
	}
	next := current + 1

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"pool":        &types.AttributeValueMemberS{Value: s.pool},
			"version":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", next)},
			"schema_name": &types.AttributeValueMemberS{Value: schemaName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentCommit
		}
		return 0, fmt.Errorf("schema: commit version: %w", err)
	}
	return next, nil
}
