// Package borders computes quantile bin borders for numeric features and
// assigns raw values to bin indices.
//
// A border list is an ordered sequence of strictly increasing float32
// thresholds. A value maps to the number of borders strictly less than it,
// so a list of k borders produces k+1 bins. NaN handling is controlled by
// a NanMode that is fixed per feature for the lifetime of a build.
package borders

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// NanMode controls how NaN values are binned.
type NanMode uint8

const (
	// NanAsIs leaves NaN to the raw comparison rule: no border is strictly
	// less than NaN, so NaN lands in bin 0 without being treated specially.
	NanAsIs NanMode = iota

	// NanForbidden rejects the feature if any NaN is observed.
	NanForbidden

	// NanIsMin maps NaN to the first bin.
	NanIsMin

	// NanIsMax maps NaN to the last bin.
	NanIsMax
)

// String implements fmt.Stringer. The names are stable and used by the
// schema codec.
func (m NanMode) String() string {
	switch m {
	case NanAsIs:
		return "AsIs"
	case NanForbidden:
		return "Forbidden"
	case NanIsMin:
		return "Min"
	case NanIsMax:
		return "Max"
	default:
		return fmt.Sprintf("NanMode(%d)", uint8(m))
	}
}

// ParseNanMode is the inverse of String.
func ParseNanMode(s string) (NanMode, error) {
	switch s {
	case "AsIs":
		return NanAsIs, nil
	case "Forbidden":
		return NanForbidden, nil
	case "Min":
		return NanIsMin, nil
	case "Max":
		return NanIsMax, nil
	default:
		return 0, fmt.Errorf("borders: unknown nan mode %q", s)
	}
}

// GridMode selects the border construction strategy.
type GridMode uint8

const (
	// GridQuantile places borders at value quantiles, midway between the
	// distinct values that straddle each cut. This is the default.
	GridQuantile GridMode = iota

	// GridUniform places borders evenly between the observed min and max.
	GridUniform
)

// Config controls border computation.
type Config struct {
	// MaxBorders caps the number of borders (bins - 1). Defaults to 255,
	// which keeps bin indices within a single byte.
	MaxBorders int

	// Grid selects the construction strategy.
	Grid GridMode
}

// DefaultConfig is the configuration used when none is supplied.
var DefaultConfig = Config{MaxBorders: 255, Grid: GridQuantile}

// ErrNanForbidden is returned by Binarize when a NaN value is observed
// under NanForbidden.
var ErrNanForbidden = errors.New("borders: NaN value with NaN handling forbidden")

// Compute derives a border list from the observed values in their
// ingestion order. NaN values are excluded from grid construction.
//
// The returned slice is strictly increasing. It is empty when the values
// hold fewer than two distinct finite entries; such a feature is
// degenerate and yields no column.
func Compute(values []float32, cfg Config) ([]float32, error) {
	if cfg.MaxBorders <= 0 {
		cfg.MaxBorders = DefaultConfig.MaxBorders
	}

	finite := make([]float32, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(float64(v)) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil, nil
	}

	sort.Slice(finite, func(i, j int) bool { return finite[i] < finite[j] })

	switch cfg.Grid {
	case GridQuantile:
		return quantileGrid(finite, cfg.MaxBorders), nil
	case GridUniform:
		return uniformGrid(finite, cfg.MaxBorders), nil
	default:
		return nil, fmt.Errorf("borders: unknown grid mode %d", cfg.Grid)
	}
}

// quantileGrid cuts the sorted values at evenly spaced ranks and places
// each border midway between the two distinct values around the cut.
func quantileGrid(sorted []float32, maxBorders int) []float32 {
	grid := make([]float32, 0, maxBorders)
	n := len(sorted)

	for i := 0; i < maxBorders; i++ {
		// Rank of the right element of the cut.
		rank := (i + 1) * n / (maxBorders + 1)
		if rank <= 0 || rank >= n {
			continue
		}
		lo, hi := sorted[rank-1], sorted[rank]
		if lo == hi {
			// Degenerate cut inside a run of equal values. Fall back to
			// the nearest distinct pair to the left so heavy ties do not
			// swallow the whole grid.
			j := rank - 1
			for j > 0 && sorted[j-1] == hi {
				j--
			}
			if j == 0 {
				continue
			}
			lo, hi = sorted[j-1], sorted[j]
		}
		b := lo + (hi-lo)/2
		if len(grid) == 0 || b > grid[len(grid)-1] {
			grid = append(grid, b)
		}
	}

	return grid
}

// uniformGrid places borders evenly across [min, max].
func uniformGrid(sorted []float32, maxBorders int) []float32 {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return nil
	}

	grid := make([]float32, 0, maxBorders)
	step := (float64(hi) - float64(lo)) / float64(maxBorders+1)
	for i := 1; i <= maxBorders; i++ {
		b := float32(float64(lo) + step*float64(i))
		if len(grid) == 0 || b > grid[len(grid)-1] {
			grid = append(grid, b)
		}
	}
	return grid
}

// BinCount returns the number of bins addressed by a border list.
func BinCount(grid []float32) uint32 {
	return uint32(len(grid)) + 1
}

// Binarize maps each value to its bin index in [0, BinCount(grid)).
//
// A value maps to the count of borders strictly less than it. NaN values
// are routed by mode: first bin for NanIsMin, last bin for NanIsMax, an
// error for NanForbidden, and the raw comparison result (bin 0) for
// NanAsIs.
func Binarize(values []float32, grid []float32, mode NanMode) ([]uint32, error) {
	lastBin := uint32(len(grid))
	bins := make([]uint32, len(values))

	for i, v := range values {
		if math.IsNaN(float64(v)) {
			switch mode {
			case NanForbidden:
				return nil, fmt.Errorf("%w: document %d", ErrNanForbidden, i)
			case NanIsMin, NanAsIs:
				bins[i] = 0
			case NanIsMax:
				bins[i] = lastBin
			}
			continue
		}
		bins[i] = upperBound(grid, v)
	}

	return bins, nil
}

// DetectNanMode returns preferred when the values contain a NaN and
// NanForbidden otherwise. Features without NaNs keep the strict mode so a
// NaN appearing in a later build is reported instead of silently binned.
func DetectNanMode(values []float32, preferred NanMode) NanMode {
	for _, v := range values {
		if math.IsNaN(float64(v)) {
			return preferred
		}
	}
	return NanForbidden
}

// upperBound returns the count of borders strictly less than v.
func upperBound(grid []float32, v float32) uint32 {
	lo, hi := 0, len(grid)
	for lo < hi {
		mid := (lo + hi) / 2
		if grid[mid] < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return uint32(lo)
}
