package schema

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hupe1980/quantpool/blobstore"
	"github.com/hupe1980/quantpool/codec"
)

// BlobSource reads and writes schemas through a blobstore.Store.
//
// Two layouts are supported: a single document holding the whole schema
// (the default, used by Load/Save) and a sharded layout with one document
// per feature (LoadFeatures/SaveFeatures), which scales to feature spaces
// where a single blob would be awkward to re-upload on every change.
type BlobSource struct {
	store   blobstore.Store
	codec   codec.Codec
	limiter *rate.Limiter
	name    string
	fetches int64
}

// BlobSourceOption configures a BlobSource.
type BlobSourceOption func(*BlobSource)

// WithCodec sets the payload codec. Defaults to codec.Default.
func WithCodec(c codec.Codec) BlobSourceOption {
	return func(s *BlobSource) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithRateLimit throttles blob fetches, e.g. to stay under an object
// store's request quota when many builds start at once.
func WithRateLimit(l *rate.Limiter) BlobSourceOption {
	return func(s *BlobSource) { s.limiter = l }
}

// WithFetchConcurrency bounds the number of in-flight per-feature fetches
// in LoadFeatures. Defaults to 16.
func WithFetchConcurrency(n int64) BlobSourceOption {
	return func(s *BlobSource) {
		if n > 0 {
			s.fetches = n
		}
	}
}

// NewBlobSource creates a schema source over a blob store. name is the
// document name (single layout) and directory prefix (sharded layout),
// e.g. "pools/click/schema".
func NewBlobSource(store blobstore.Store, name string, optFns ...BlobSourceOption) *BlobSource {
	s := &BlobSource{
		store:   store,
		codec:   codec.Default,
		name:    name,
		fetches: 16,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(s)
		}
	}
	return s
}

func (s *BlobSource) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// Load fetches and decodes the whole-schema document.
func (s *BlobSource) Load(ctx context.Context) (*Schema, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	data, err := s.store.Get(ctx, s.name)
	if err != nil {
		return nil, err
	}

	out := New()
	if err := s.codec.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("schema: decode %s: %w", s.name, err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save encodes and stores the whole-schema document.
func (s *BlobSource) Save(ctx context.Context, sch *Schema) error {
	if err := sch.Validate(); err != nil {
		return err
	}

	data, err := s.codec.Marshal(sch)
	if err != nil {
		return fmt.Errorf("schema: encode %s: %w", s.name, err)
	}
	return s.store.Put(ctx, s.name, data)
}

func (s *BlobSource) featureKey(featureID uint32) string {
	return path.Join(s.name, strconv.FormatUint(uint64(featureID), 10))
}

// LoadFeatures fetches the sharded per-feature documents for the given
// feature indices concurrently. Features without a stored document are
// simply absent from the result.
func (s *BlobSource) LoadFeatures(ctx context.Context, featureIDs []uint32) (*Schema, error) {
	sem := semaphore.NewWeighted(s.fetches)

	type fetched struct {
		id      uint32
		feature Feature
		ok      bool
		err     error
	}
	results := make([]fetched, len(featureIDs))

	for i, id := range featureIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func(slot int, featureID uint32) {
			defer sem.Release(1)

			r := fetched{id: featureID}
			defer func() { results[slot] = r }()

			if err := s.wait(ctx); err != nil {
				r.err = err
				return
			}
			data, err := s.store.Get(ctx, s.featureKey(featureID))
			if err != nil {
				if errors.Is(err, blobstore.ErrNotFound) {
					return
				}
				r.err = err
				return
			}
			var f Feature
			if err := s.codec.Unmarshal(data, &f); err != nil {
				r.err = fmt.Errorf("schema: decode feature %d: %w", featureID, err)
				return
			}
			r.feature = f
			r.ok = true
		}(i, id)
	}

	// Draining the semaphore waits for every fetch.
	if err := sem.Acquire(ctx, s.fetches); err != nil {
		return nil, err
	}

	out := New()
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.ok {
			out.Features[r.id] = r.feature
		}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveFeatures stores one document per feature under the source's prefix.
func (s *BlobSource) SaveFeatures(ctx context.Context, sch *Schema) error {
	if err := sch.Validate(); err != nil {
		return err
	}

	for id, f := range sch.Features {
		data, err := s.codec.Marshal(f)
		if err != nil {
			return fmt.Errorf("schema: encode feature %d: %w", id, err)
		}
		if err := s.store.Put(ctx, s.featureKey(id), data); err != nil {
			return err
		}
	}
	return nil
}
