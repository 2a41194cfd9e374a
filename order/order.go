// Package order computes and applies the global document permutation.
//
// Every per-document array in a build (targets, weights, group ids, raw
// feature buffers) is rewritten through a single permutation decided once,
// before any parallel work starts. The permutation maps final position to
// original ingestion position: new[i] = old[p[i]].
package order

import (
	"math/rand"
	"sort"
)

// Permutation is a bijection from final document position to original
// ingestion position.
type Permutation []int

// Identity returns the identity permutation over n documents.
func Identity(n int) Permutation {
	p := make(Permutation, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// IsIdentity reports whether applying p would change nothing.
func (p Permutation) IsIdentity() bool {
	for i, v := range p {
		if v != i {
			return false
		}
	}
	return true
}

// Inverse returns the permutation q with q[p[i]] = i. It maps original
// ingestion position to final position, which is what pair lists need.
func (p Permutation) Inverse() Permutation {
	inv := make(Permutation, len(p))
	for i, v := range p {
		inv[v] = i
	}
	return inv
}

// ByTimestamp returns the permutation that sorts documents by ascending
// timestamp. The sort is stable: documents with equal timestamps keep
// their ingestion order.
func ByTimestamp(timestamps []uint64) Permutation {
	p := Identity(len(timestamps))
	sort.SliceStable(p, func(i, j int) bool {
		return timestamps[p[i]] < timestamps[p[j]]
	})
	return p
}

// Shuffle returns an unconstrained random permutation over n documents,
// deterministic for a given seed.
func Shuffle(seed int64, n int) Permutation {
	rng := rand.New(rand.NewSource(seed))
	return Permutation(rng.Perm(n))
}

// GroupConsistentShuffle returns a random permutation that keeps every
// document sharing a group id contiguous and in ingestion order inside
// the group. Only the relative order of groups is randomized; the result
// is deterministic for a given seed and group structure.
//
// Intra-group order must not change: pairwise-preference data references
// documents relative to their group.
func GroupConsistentShuffle(seed int64, groupIDs []uint64) Permutation {
	groupOrder := make([]uint64, 0)
	members := make(map[uint64][]int)
	for i, g := range groupIDs {
		if _, ok := members[g]; !ok {
			groupOrder = append(groupOrder, g)
		}
		members[g] = append(members[g], i)
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(groupOrder), func(i, j int) {
		groupOrder[i], groupOrder[j] = groupOrder[j], groupOrder[i]
	})

	p := make(Permutation, 0, len(groupIDs))
	for _, g := range groupOrder {
		p = append(p, members[g]...)
	}
	return p
}

// AnyNonZero reports whether any timestamp is set. A single nonzero
// timestamp makes timestamp order authoritative for the whole build.
func AnyNonZero(timestamps []uint64) bool {
	for _, ts := range timestamps {
		if ts != 0 {
			return true
		}
	}
	return false
}

// Compute decides the permutation for a build.
//
// Policy, in priority order: timestamp order when any timestamp is
// nonzero (shuffling is then ignored), group-consistent shuffle when
// shuffling is enabled and group ids are present, plain shuffle when
// shuffling is enabled without group ids, identity otherwise.
func Compute(timestamps []uint64, groupIDs []uint64, shuffle bool, seed int64) Permutation {
	n := len(timestamps)
	if AnyNonZero(timestamps) {
		return ByTimestamp(timestamps)
	}
	if !shuffle {
		return Identity(n)
	}
	if len(groupIDs) > 0 {
		return GroupConsistentShuffle(seed, groupIDs)
	}
	return Shuffle(seed, n)
}

// Apply rewrites a column through the permutation: out[i] = col[p[i]].
// The input column is left untouched.
func Apply[T any](p Permutation, col []T) []T {
	out := make([]T, len(p))
	for i, v := range p {
		out[i] = col[v]
	}
	return out
}
