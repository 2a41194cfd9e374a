// Package schema loads and stores precomputed quantization schemas.
//
// A schema maps feature indices to border grids and NaN modes. Supplying
// one to a build short-circuits border computation: the supplied grids are
// used verbatim and never recomputed, which is how evaluation pools stay
// bin-compatible with the learn pool they are scored against.
package schema

import (
	"context"
	"fmt"

	"github.com/hupe1980/quantpool/borders"
)

// Feature is the quantization schema of a single numeric feature.
type Feature struct {
	// Borders is the strictly increasing border grid.
	Borders []float32 `json:"borders"`

	// NanMode is the stable name of the NaN handling mode
	// (see borders.NanMode.String).
	NanMode string `json:"nan_mode"`
}

// Mode parses the feature's NaN mode.
func (f Feature) Mode() (borders.NanMode, error) {
	return borders.ParseNanMode(f.NanMode)
}

// Schema maps feature index to its quantization schema.
type Schema struct {
	Features map[uint32]Feature `json:"features"`
}

// New creates an empty schema.
func New() *Schema {
	return &Schema{Features: make(map[uint32]Feature)}
}

// Set records the schema of one feature.
func (s *Schema) Set(featureID uint32, grid []float32, mode borders.NanMode) {
	s.Features[featureID] = Feature{Borders: grid, NanMode: mode.String()}
}

// Validate checks that every grid is strictly increasing and every NaN
// mode parses.
func (s *Schema) Validate() error {
	for id, f := range s.Features {
		for i := 1; i < len(f.Borders); i++ {
			if f.Borders[i] <= f.Borders[i-1] {
				return fmt.Errorf("schema: feature %d borders not strictly increasing at %d", id, i)
			}
		}
		if _, err := f.Mode(); err != nil {
			return fmt.Errorf("schema: feature %d: %w", id, err)
		}
	}
	return nil
}

// Source supplies a precomputed quantization schema to a build.
type Source interface {
	// Load returns the schema, or an error satisfying
	// errors.Is(err, blobstore.ErrNotFound) when none has been stored.
	Load(ctx context.Context) (*Schema, error)
}
