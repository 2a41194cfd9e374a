// Package meta holds quantization metadata shared across builds and
// across the parallel feature workers of a single build.
//
// The registry caches the border grid and NaN mode per feature index.
// A learn build populates it; later builds over the same feature space
// (evaluation pools, refreshed snapshots) reuse the cached grid so bin
// indices stay comparable between datasets.
package meta

import (
	"fmt"
	"sync"

	"github.com/hupe1980/quantpool/borders"
)

const shardCount = 16

// ErrNanModeConflict is returned when a feature's NaN mode is set to two
// different values across calls.
var ErrNanModeConflict = fmt.Errorf("meta: conflicting nan mode for feature")

type entry struct {
	grid       []float32
	nanMode    borders.NanMode
	hasGrid    bool
	hasNanMode bool
}

type shard struct {
	mu      sync.Mutex
	entries map[uint32]*entry
}

// Registry is a concurrent feature-metadata cache.
//
// Locking is sharded by feature index and held only for the read or
// update of one feature's entry, never across a quantization pass.
type Registry struct {
	shards [shardCount]shard
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].entries = make(map[uint32]*entry)
	}
	return r
}

func (r *Registry) shard(featureID uint32) *shard {
	return &r.shards[featureID%shardCount]
}

// Borders returns the cached border grid for a feature, if any.
func (r *Registry) Borders(featureID uint32) ([]float32, bool) {
	s := r.shard(featureID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[featureID]
	if !ok || !e.hasGrid {
		return nil, false
	}
	return e.grid, true
}

// SetBordersIfAbsent caches a border grid for a feature unless one is
// already present. It returns the grid now associated with the feature.
func (r *Registry) SetBordersIfAbsent(featureID uint32, grid []float32) []float32 {
	s := r.shard(featureID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreate(featureID)
	if !e.hasGrid {
		e.grid = grid
		e.hasGrid = true
	}
	return e.grid
}

// NanMode returns the cached NaN mode for a feature, if any.
func (r *Registry) NanMode(featureID uint32) (borders.NanMode, bool) {
	s := r.shard(featureID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[featureID]
	if !ok || !e.hasNanMode {
		return 0, false
	}
	return e.nanMode, true
}

// SetOrCheckNanMode records the NaN mode for a feature. A second call with
// a different mode is a consistency error: bin indices produced under one
// mode are meaningless under another.
func (r *Registry) SetOrCheckNanMode(featureID uint32, mode borders.NanMode) error {
	s := r.shard(featureID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreate(featureID)
	if e.hasNanMode {
		if e.nanMode != mode {
			return fmt.Errorf("%w %d: have %s, got %s", ErrNanModeConflict, featureID, e.nanMode, mode)
		}
		return nil
	}
	e.nanMode = mode
	e.hasNanMode = true
	return nil
}

// GetOrComputeNanMode returns the cached NaN mode for a feature, deriving
// and caching one from the values when absent: preferred when the values
// contain a NaN, Forbidden otherwise.
func (r *Registry) GetOrComputeNanMode(featureID uint32, values []float32, preferred borders.NanMode) borders.NanMode {
	s := r.shard(featureID)
	s.mu.Lock()
	e, ok := s.entries[featureID]
	if ok && e.hasNanMode {
		mode := e.nanMode
		s.mu.Unlock()
		return mode
	}
	s.mu.Unlock()

	// Scan outside the lock; the scan is O(n) and must not serialize the
	// parallel feature workers.
	mode := borders.DetectNanMode(values, preferred)

	s.mu.Lock()
	defer s.mu.Unlock()
	e = s.getOrCreate(featureID)
	if e.hasNanMode {
		return e.nanMode
	}
	e.nanMode = mode
	e.hasNanMode = true
	return mode
}

func (s *shard) getOrCreate(featureID uint32) *entry {
	e, ok := s.entries[featureID]
	if !ok {
		e = &entry{}
		s.entries[featureID] = e
	}
	return e
}
