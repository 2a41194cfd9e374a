// Package quantpool builds quantized training pools for gradient boosting.
//
// Raw documents arrive in blocks: per-document feature values (numeric,
// categorical or pre-binarized), targets, weights, group ids, timestamps,
// baselines and pairwise preferences. Finish turns the accumulated blocks
// into an immutable Dataset: numeric features are quantized against
// quantile border grids, categorical features are perfect-hashed to dense
// codes, and every column is bit-packed at the minimal width for its bin
// count.
//
// All per-document data is rewritten through a single permutation decided
// at Finish. Documents are shuffled by default; builds carrying group ids
// are shuffled group-consistently so groups stay contiguous, and builds
// carrying timestamps are sorted by ascending timestamp instead.
//
// Border grids and categorical codes live in registries that can be shared
// between builds, which is how evaluation pools stay bin-compatible with
// the learn pool they are scored against:
//
//	registry := meta.NewRegistry()
//	hash := perfecthash.NewRegistry()
//
//	learn := quantpool.NewBuilder(
//		quantpool.WithFeatureMeta(registry),
//		quantpool.WithPerfectHash(hash),
//	)
//
//	eval := quantpool.NewBuilder(
//		quantpool.WithFeatureMeta(registry),
//		quantpool.WithPerfectHash(hash),
//		quantpool.WithEvalRole(true),
//	)
//
// Precomputed grids can also be loaded from a schema store (see the schema
// and blobstore packages) and applied with Builder.ApplySchema.
package quantpool
