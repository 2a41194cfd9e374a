package quantpool

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/quantpool/bitpack"
	"github.com/hupe1980/quantpool/borders"
)

// ValueKind classifies how a feature's raw values are interpreted.
type ValueKind uint8

const (
	// Numeric features carry float32 values and are quantized against a
	// border grid.
	Numeric ValueKind = iota

	// Categorical features carry 32-bit hashes of the original strings and
	// are mapped to dense codes by perfect hashing.
	Categorical

	// PreBinarized features carry bin indices already; the border grid that
	// produced them must be supplied up front.
	PreBinarized
)

// String implements fmt.Stringer.
func (k ValueKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case PreBinarized:
		return "binarized"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Pair is a pairwise preference between two documents of the same group.
// Winner and Loser index documents in final (permuted) order.
type Pair struct {
	Winner int
	Loser  int
	Weight float32
}

// Column is one quantized feature column in final document order.
type Column interface {
	// FeatureID returns the feature's index in the input feature space.
	FeatureID() uint32

	// FeatureName returns the feature's display name, if any.
	FeatureName() string

	// DocCount returns the number of documents in the column.
	DocCount() int

	// Packed returns the bit-packed bin indices.
	Packed() *bitpack.Packed
}

// NumericColumn is a quantized numeric column together with the grid that
// produced it.
type NumericColumn struct {
	id      uint32
	name    string
	grid    []float32
	nanMode borders.NanMode
	packed  *bitpack.Packed
}

func (c *NumericColumn) FeatureID() uint32       { return c.id }
func (c *NumericColumn) FeatureName() string     { return c.name }
func (c *NumericColumn) DocCount() int           { return c.packed.Len() }
func (c *NumericColumn) Packed() *bitpack.Packed { return c.packed }

// Borders returns the border grid the column was quantized against.
func (c *NumericColumn) Borders() []float32 { return c.grid }

// NanMode returns the NaN handling mode used during quantization.
func (c *NumericColumn) NanMode() borders.NanMode { return c.nanMode }

// BinCount returns the number of bins addressed by the column.
func (c *NumericColumn) BinCount() uint32 { return borders.BinCount(c.grid) }

// CategoricalColumn is a perfect-hashed categorical column.
type CategoricalColumn struct {
	id      uint32
	name    string
	uniques uint32
	packed  *bitpack.Packed
}

func (c *CategoricalColumn) FeatureID() uint32       { return c.id }
func (c *CategoricalColumn) FeatureName() string     { return c.name }
func (c *CategoricalColumn) DocCount() int           { return c.packed.Len() }
func (c *CategoricalColumn) Packed() *bitpack.Packed { return c.packed }

// UniqueValues returns the number of distinct categories the column's
// perfect-hash table held when the column was built.
func (c *CategoricalColumn) UniqueValues() uint32 { return c.uniques }

// Dataset is an immutable quantized training pool. All per-document data
// is in final (permuted) order.
type Dataset struct {
	columns     []Column
	featureSet  *roaring.Bitmap
	byFeature   map[uint32]Column
	targets     []float32
	weights     []float32
	groupIDs    []uint64
	subgroupIDs []uint32
	timestamps  []uint64
	baselines   [][]float32
	pairs       []Pair
	docCount    int
}

// DocCount returns the number of documents.
func (d *Dataset) DocCount() int { return d.docCount }

// Columns returns the emitted feature columns, ordered by feature index.
func (d *Dataset) Columns() []Column { return d.columns }

// ColumnByFeature returns the column built for a feature index, if the
// feature survived quantization.
func (d *Dataset) ColumnByFeature(featureID uint32) (Column, bool) {
	c, ok := d.byFeature[featureID]
	return c, ok
}

// FeatureIndices returns the set of feature indices that produced columns.
func (d *Dataset) FeatureIndices() *roaring.Bitmap { return d.featureSet }

// Targets returns the target values.
func (d *Dataset) Targets() []float32 { return d.targets }

// Weights returns the document weights.
func (d *Dataset) Weights() []float32 { return d.weights }

// GroupIDs returns the group ids, or nil when the input carried none.
func (d *Dataset) GroupIDs() []uint64 { return d.groupIDs }

// SubgroupIDs returns the subgroup ids. Documents without an explicit
// subgroup carry their ingestion index.
func (d *Dataset) SubgroupIDs() []uint32 { return d.subgroupIDs }

// Timestamps returns the document timestamps.
func (d *Dataset) Timestamps() []uint64 { return d.timestamps }

// Baselines returns the per-dimension baseline rows.
func (d *Dataset) Baselines() [][]float32 { return d.baselines }

// Pairs returns the pairwise preferences, remapped to final document
// positions.
func (d *Dataset) Pairs() []Pair { return d.pairs }
