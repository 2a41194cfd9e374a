// Package perfecthash assigns dense integer codes to raw categorical
// values.
//
// Raw categorical values arrive as opaque 32-bit hashes of the original
// strings. Each feature owns a table mapping raw value to the next unused
// code, starting at 0 and growing monotonically across blocks and builds.
// Codes are never reassigned or removed, so a code remains stable for the
// whole lifetime of a registry.
package perfecthash

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// HashCategorical converts a raw categorical string into the 32-bit value
// stored in raw feature buffers. Collisions fold two categories into one;
// with xxhash at 32 bits this is negligible for realistic cardinalities.
func HashCategorical(s string) uint32 {
	return uint32(xxhash.Sum64String(s))
}

// Registry holds one perfect-hash table per categorical feature.
//
// Distinct features may be updated concurrently; the registry lock only
// guards table lookup and creation, never a whole binarization pass.
type Registry struct {
	mu     sync.RWMutex
	tables map[uint32]*table
}

type table struct {
	codes map[uint32]uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[uint32]*table)}
}

// UniqueValues returns the number of distinct raw values seen so far for
// the feature. Zero means the feature has never been updated.
func (r *Registry) UniqueValues(featureID uint32) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[featureID]
	if !ok {
		return 0
	}
	return len(t.codes)
}

// UpdateAndBinarize maps each raw value to its dense code, assigning the
// next unused code to values not seen before. The feature's unique-value
// count grows monotonically; repeated calls return identical codes for
// identical raw values.
//
// The caller must not update the same feature from two goroutines at once.
func (r *Registry) UpdateAndBinarize(featureID uint32, raw []uint32) []uint32 {
	t := r.getOrCreate(featureID)

	codes := make([]uint32, len(raw))
	for i, v := range raw {
		code, ok := t.codes[v]
		if !ok {
			code = uint32(len(t.codes))
			t.codes[v] = code
		}
		codes[i] = code
	}
	return codes
}

func (r *Registry) getOrCreate(featureID uint32) *table {
	r.mu.RLock()
	t, ok := r.tables[featureID]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.tables[featureID]; ok {
		return t
	}
	t = &table{codes: make(map[uint32]uint32)}
	r.tables[featureID] = t
	return t
}
