package quantpool

import (
	"context"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/quantpool/bitpack"
	"github.com/hupe1980/quantpool/borders"
	"github.com/hupe1980/quantpool/internal/rawcol"
	"github.com/hupe1980/quantpool/order"
	"github.com/hupe1980/quantpool/perfecthash"
	"github.com/hupe1980/quantpool/schema"
)

// Metadata describes the shape of the incoming data.
type Metadata struct {
	// FeatureCount is the size of the input feature space. Feature indices
	// passed to writers must be below it.
	FeatureCount int

	// BaselineCount is the number of baseline dimensions per document.
	BaselineCount int

	// FeatureNames are optional display names, indexed by feature. May be
	// shorter than FeatureCount; missing names are empty.
	FeatureNames []string
}

// Builder accumulates raw documents block by block and quantizes them into
// an immutable Dataset on Finish.
//
// A Builder is single-use: Start once, append blocks, Finish once. It is
// not safe for concurrent use; parallelism happens inside Finish.
type Builder struct {
	opts options

	meta      Metadata
	kinds     []ValueKind
	ignored   *roaring.Bitmap
	blobs     [][]byte
	fviews    []rawcol.Float32View
	bviews    []rawcol.Uint8View
	prebinIDs []uint32

	targets      []float32
	weights      []float32
	groupIDs     []uint64
	subgroupIDs  []uint32
	timestamps   []uint64
	baselines    [][]float32
	pairs        []Pair
	groupWeights map[uint64]float32

	cursor    int // first document of the current block
	blockSize int
	docCount  int
	started   bool
	finished  bool
}

// NewBuilder creates a builder.
func NewBuilder(optFns ...Option) *Builder {
	return &Builder{
		opts:         applyOptions(optFns...),
		ignored:      roaring.New(),
		groupWeights: make(map[uint64]float32),
	}
}

// AddIgnoredFeatures excludes features from the build. Writes to an
// ignored feature are rejected and no column is emitted for it. Must be
// called before Start.
func (b *Builder) AddIgnoredFeatures(featureIDs ...uint32) error {
	if b.started {
		return configErrf("ignore", "features cannot be ignored after Start")
	}
	b.ignored.AddMany(featureIDs)
	return nil
}

// SetPreBinarized declares a feature as pre-binarized and registers the
// border grid and NaN mode its bin indices were produced with. Must be
// called before Start.
func (b *Builder) SetPreBinarized(featureID uint32, grid []float32, mode borders.NanMode) error {
	if b.started {
		return configErrf("binarized", "pre-binarized features must be declared before Start")
	}
	if len(grid) == 0 {
		return configErrf("binarized", "feature %d: empty border grid", featureID)
	}
	b.opts.registry.SetBordersIfAbsent(featureID, grid)
	if err := b.opts.registry.SetOrCheckNanMode(featureID, mode); err != nil {
		return consistencyErrf(err, "feature %d: %v", featureID, err)
	}
	b.prebinIDs = append(b.prebinIDs, featureID)
	return nil
}

// ApplySchema feeds a precomputed quantization schema into the build.
// Supplied grids are used verbatim; borders are never recomputed for the
// covered features.
func (b *Builder) ApplySchema(sch *schema.Schema) error {
	if err := sch.Validate(); err != nil {
		return consistencyErrf(err, "invalid schema: %v", err)
	}
	for id, f := range sch.Features {
		mode, err := f.Mode()
		if err != nil {
			return consistencyErrf(err, "feature %d: %v", id, err)
		}
		b.opts.registry.SetBordersIfAbsent(id, f.Borders)
		if err := b.opts.registry.SetOrCheckNanMode(id, mode); err != nil {
			return consistencyErrf(err, "feature %d: %v", id, err)
		}
	}
	return nil
}

// Start prepares the builder for the given feature space. docCapacity is a
// hint for the expected total document count; catFeatureIDs marks which
// feature indices carry categorical values.
func (b *Builder) Start(meta Metadata, docCapacity int, catFeatureIDs []uint32) error {
	if b.started {
		return configErrf("start", "builder already started")
	}
	if meta.FeatureCount < 0 {
		return configErrf("start", "negative feature count %d", meta.FeatureCount)
	}

	b.meta = meta
	b.kinds = make([]ValueKind, meta.FeatureCount)
	for _, id := range catFeatureIDs {
		if int(id) >= meta.FeatureCount {
			return configErrf("start", "categorical feature %d outside feature space of %d", id, meta.FeatureCount)
		}
		b.kinds[id] = Categorical
	}
	for _, id := range b.prebinIDs {
		if int(id) >= meta.FeatureCount {
			return configErrf("start", "pre-binarized feature %d outside feature space of %d", id, meta.FeatureCount)
		}
		if b.kinds[id] == Categorical {
			return configErrf("start", "feature %d declared both categorical and pre-binarized", id)
		}
		b.kinds[id] = PreBinarized
	}

	if docCapacity < 0 {
		docCapacity = 0
	}
	b.blobs = make([][]byte, meta.FeatureCount)
	b.fviews = make([]rawcol.Float32View, meta.FeatureCount)
	b.bviews = make([]rawcol.Uint8View, meta.FeatureCount)
	for id := range b.blobs {
		if b.ignored.Contains(uint32(id)) {
			continue
		}
		stride := rawcol.Float32Stride
		if b.kinds[id] == PreBinarized {
			stride = 1
		}
		b.blobs[id] = make([]byte, 0, docCapacity*stride)
	}

	b.targets = make([]float32, 0, docCapacity)
	b.weights = make([]float32, 0, docCapacity)
	b.groupIDs = make([]uint64, 0, docCapacity)
	b.subgroupIDs = make([]uint32, 0, docCapacity)
	b.timestamps = make([]uint64, 0, docCapacity)
	b.baselines = make([][]float32, meta.BaselineCount)
	for dim := range b.baselines {
		b.baselines[dim] = make([]float32, 0, docCapacity)
	}

	b.started = true
	return nil
}

// StartNextBlock opens a block of blockSize documents. All per-document
// writers address documents of the current block by local index. New
// documents default to weight 1, group and subgroup ids equal to their
// document index, zero timestamp and zero baseline.
func (b *Builder) StartNextBlock(blockSize int) error {
	if !b.started {
		return configErrf("block", "builder not started")
	}
	if b.finished {
		return configErrf("block", "builder already finished")
	}
	if blockSize <= 0 {
		return configErrf("block", "non-positive block size %d", blockSize)
	}

	b.cursor = b.docCount
	b.blockSize = blockSize
	b.docCount += blockSize

	for id, blob := range b.blobs {
		if b.ignored.Contains(uint32(id)) {
			continue
		}
		stride := rawcol.Float32Stride
		if b.kinds[id] == PreBinarized {
			stride = 1
		}
		b.blobs[id] = append(blob, make([]byte, blockSize*stride)...)
		if b.kinds[id] == PreBinarized {
			b.bviews[id], _ = rawcol.ViewUint8(b.blobs[id], b.docCount)
		} else {
			b.fviews[id], _ = rawcol.ViewFloat32(b.blobs[id], b.docCount)
		}
	}

	b.targets = append(b.targets, make([]float32, blockSize)...)
	b.weights = append(b.weights, make([]float32, blockSize)...)
	b.groupIDs = append(b.groupIDs, make([]uint64, blockSize)...)
	b.subgroupIDs = append(b.subgroupIDs, make([]uint32, blockSize)...)
	b.timestamps = append(b.timestamps, make([]uint64, blockSize)...)
	for dim := range b.baselines {
		b.baselines[dim] = append(b.baselines[dim], make([]float32, blockSize)...)
	}
	for i := b.cursor; i < b.docCount; i++ {
		b.weights[i] = 1
		b.groupIDs[i] = uint64(i)
		b.subgroupIDs[i] = uint32(i)
	}

	b.opts.metrics.RecordBlock(blockSize)
	b.opts.logger.LogBlock(context.Background(), blockSize, b.docCount)
	return nil
}

func (b *Builder) checkWrite(op string, featureID uint32, localIdx int, want ValueKind) error {
	if err := b.checkDoc(op, localIdx); err != nil {
		return err
	}
	if int(featureID) >= b.meta.FeatureCount {
		return configErrf(op, "feature %d outside feature space of %d", featureID, b.meta.FeatureCount)
	}
	if b.ignored.Contains(featureID) {
		return configErrf(op, "feature %d is ignored", featureID)
	}
	if b.kinds[featureID] != want {
		return configErrf(op, "feature %d is %s, not %s", featureID, b.kinds[featureID], want)
	}
	return nil
}

func (b *Builder) checkDoc(op string, localIdx int) error {
	if !b.started {
		return configErrf(op, "builder not started")
	}
	if b.finished {
		return configErrf(op, "builder already finished")
	}
	if b.blockSize == 0 {
		return configErrf(op, "no open block")
	}
	if localIdx < 0 || localIdx >= b.blockSize {
		return configErrf(op, "local index %d outside block of %d", localIdx, b.blockSize)
	}
	return nil
}

// WriteFloat stores a raw numeric value for a document of the current
// block.
func (b *Builder) WriteFloat(featureID uint32, localIdx int, v float32) error {
	if err := b.checkWrite("float", featureID, localIdx, Numeric); err != nil {
		return err
	}
	b.fviews[featureID].Set(b.cursor+localIdx, v)
	return nil
}

// WriteCategorical stores a raw categorical value, given as the 32-bit
// hash of the original string (see perfecthash.HashCategorical).
func (b *Builder) WriteCategorical(featureID uint32, localIdx int, raw uint32) error {
	if err := b.checkWrite("categorical", featureID, localIdx, Categorical); err != nil {
		return err
	}
	b.fviews[featureID].SetBits(b.cursor+localIdx, raw)
	return nil
}

// WriteCategoricalString hashes and stores a raw categorical string.
func (b *Builder) WriteCategoricalString(featureID uint32, localIdx int, s string) error {
	return b.WriteCategorical(featureID, localIdx, perfecthash.HashCategorical(s))
}

// WriteBinarized stores an already-quantized bin index for a feature
// declared with SetPreBinarized.
func (b *Builder) WriteBinarized(featureID uint32, localIdx int, bin uint8) error {
	if err := b.checkWrite("binarized", featureID, localIdx, PreBinarized); err != nil {
		return err
	}
	b.bviews[featureID].Set(b.cursor+localIdx, bin)
	return nil
}

// WriteTarget stores the target of a document of the current block.
func (b *Builder) WriteTarget(localIdx int, v float32) error {
	if err := b.checkDoc("target", localIdx); err != nil {
		return err
	}
	b.targets[b.cursor+localIdx] = v
	return nil
}

// WriteWeight overrides a document's weight. Defaults to 1.
func (b *Builder) WriteWeight(localIdx int, w float32) error {
	if err := b.checkDoc("weight", localIdx); err != nil {
		return err
	}
	b.weights[b.cursor+localIdx] = w
	return nil
}

// WriteGroupID assigns a document to a group. Documents sharing a group id
// stay contiguous under shuffling.
func (b *Builder) WriteGroupID(localIdx int, id uint64) error {
	if err := b.checkDoc("group", localIdx); err != nil {
		return err
	}
	b.groupIDs[b.cursor+localIdx] = id
	return nil
}

// WriteSubgroupID assigns a document to a subgroup within its group.
func (b *Builder) WriteSubgroupID(localIdx int, id uint32) error {
	if err := b.checkDoc("subgroup", localIdx); err != nil {
		return err
	}
	b.subgroupIDs[b.cursor+localIdx] = id
	return nil
}

// WriteTimestamp stores a document's timestamp. Any nonzero timestamp in
// the build makes ascending timestamp order authoritative and disables
// shuffling.
func (b *Builder) WriteTimestamp(localIdx int, ts uint64) error {
	if err := b.checkDoc("timestamp", localIdx); err != nil {
		return err
	}
	b.timestamps[b.cursor+localIdx] = ts
	return nil
}

// WriteBaseline stores one baseline dimension of a document.
func (b *Builder) WriteBaseline(dim, localIdx int, v float32) error {
	if err := b.checkDoc("baseline", localIdx); err != nil {
		return err
	}
	if dim < 0 || dim >= len(b.baselines) {
		return configErrf("baseline", "dimension %d outside baseline space of %d", dim, len(b.baselines))
	}
	b.baselines[dim][b.cursor+localIdx] = v
	return nil
}

// AddPair records a pairwise preference between two documents, addressed
// by their global ingestion index. Pairs require group ids.
func (b *Builder) AddPair(winner, loser int, weight float32) error {
	if !b.started {
		return configErrf("pair", "builder not started")
	}
	if b.finished {
		return configErrf("pair", "builder already finished")
	}
	b.pairs = append(b.pairs, Pair{Winner: winner, Loser: loser, Weight: weight})
	return nil
}

// SetGroupWeight overrides the weight of every document of a group. The
// override is multiplied into document weights at Finish.
func (b *Builder) SetGroupWeight(groupID uint64, w float32) error {
	if b.finished {
		return configErrf("group weight", "builder already finished")
	}
	b.groupWeights[groupID] = w
	return nil
}

// DocCount returns the number of documents appended so far.
func (b *Builder) DocCount() int { return b.docCount }

// Finish quantizes the accumulated documents into an immutable Dataset.
//
// It decides the global document permutation, rewrites every per-document
// array through it, then builds the feature columns in parallel. Finish
// may be called once; the builder is unusable afterwards.
func (b *Builder) Finish(ctx context.Context) (*Dataset, error) {
	begin := time.Now()
	ds, err := b.finish(ctx)

	columns := 0
	if ds != nil {
		columns = len(ds.columns)
	}
	b.opts.metrics.RecordFinish(b.docCount, columns, time.Since(begin), err)
	b.opts.logger.LogFinish(ctx, b.docCount, columns, time.Since(begin), err)
	return ds, err
}

func (b *Builder) finish(ctx context.Context) (*Dataset, error) {
	if !b.started {
		return nil, configErrf("finish", "builder not started")
	}
	if b.finished {
		return nil, configErrf("finish", "builder already finished")
	}
	b.finished = true

	if b.docCount == 0 {
		return nil, degenerateErrf("no documents")
	}

	// Group ids default to the document index. A build "has groups" only
	// when some id deviates from that default.
	hasGroups := false
	for i, g := range b.groupIDs {
		if g != uint64(i) {
			hasGroups = true
			break
		}
	}

	groupsForOrder := b.groupIDs
	if !hasGroups {
		groupsForOrder = nil
	}
	perm := order.Compute(b.timestamps, groupsForOrder, b.opts.shuffle, b.opts.seed)

	targets := order.Apply(perm, b.targets)
	weights := order.Apply(perm, b.weights)
	timestamps := order.Apply(perm, b.timestamps)
	var groupIDs []uint64
	if hasGroups {
		groupIDs = order.Apply(perm, b.groupIDs)
	}
	subgroupIDs := order.Apply(perm, b.subgroupIDs)
	baselines := make([][]float32, len(b.baselines))
	for dim, row := range b.baselines {
		baselines[dim] = order.Apply(perm, row)
	}

	if b.opts.transform != nil {
		if err := b.opts.transform(targets, weights); err != nil {
			return nil, consistencyErrf(err, "target transform: %v", err)
		}
	}

	pairs, err := remapPairs(b.pairs, perm, groupIDs)
	if err != nil {
		return nil, err
	}

	if len(b.groupWeights) > 0 {
		if !hasGroups {
			return nil, consistencyErrf(nil, "group weights set but no group ids were written")
		}
		for i, g := range groupIDs {
			if w, ok := b.groupWeights[g]; ok {
				weights[i] *= w
			}
		}
	}

	if err := validateWeights(weights); err != nil {
		return nil, err
	}
	if err := b.checkConstantTarget(ctx, targets, pairs); err != nil {
		return nil, err
	}

	columns, err := b.buildColumns(ctx, perm)
	if err != nil {
		return nil, err
	}

	featureSet := roaring.New()
	byFeature := make(map[uint32]Column, len(columns))
	for _, c := range columns {
		featureSet.Add(c.FeatureID())
		byFeature[c.FeatureID()] = c
	}

	return &Dataset{
		columns:     columns,
		featureSet:  featureSet,
		byFeature:   byFeature,
		targets:     targets,
		weights:     weights,
		groupIDs:    groupIDs,
		subgroupIDs: subgroupIDs,
		timestamps:  timestamps,
		baselines:   baselines,
		pairs:       pairs,
		docCount:    b.docCount,
	}, nil
}

// remapPairs rewrites pair document references from ingestion order to
// final order. groupIDs is the post-permutation group column; nil means
// the build carries no groups, which rules pairs out entirely.
func remapPairs(pairs []Pair, perm order.Permutation, groupIDs []uint64) ([]Pair, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	if groupIDs == nil {
		return nil, consistencyErrf(nil, "%d pairs given but no group ids were written", len(pairs))
	}

	docCount := len(groupIDs)
	inv := perm.Inverse()
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		if p.Winner < 0 || p.Winner >= docCount || p.Loser < 0 || p.Loser >= docCount {
			return nil, consistencyErrf(nil, "pair %d references document outside [0,%d)", i, docCount)
		}
		winner, loser := inv[p.Winner], inv[p.Loser]
		if groupIDs[winner] != groupIDs[loser] {
			return nil, consistencyErrf(nil, "pair %d crosses groups %d and %d",
				i, groupIDs[winner], groupIDs[loser])
		}
		out[i] = Pair{Winner: winner, Loser: loser, Weight: p.Weight}
	}
	return out, nil
}

func validateWeights(weights []float32) error {
	nonZero := false
	for i, w := range weights {
		if w < 0 {
			return degenerateErrf("negative weight %v for document %d", w, i)
		}
		if w > 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return degenerateErrf("all document weights are zero")
	}
	return nil
}

// checkConstantTarget rejects a build whose target carries no signal. A
// constant target is still usable when non-degenerate pairwise data is
// present, in which case it is only warned about.
func (b *Builder) checkConstantTarget(ctx context.Context, targets []float32, pairs []Pair) error {
	constant := true
	for _, t := range targets[1:] {
		if t != targets[0] {
			constant = false
			break
		}
	}
	if !constant {
		return nil
	}

	pairsConstant := true
	for _, p := range pairs {
		if p != pairs[0] {
			pairsConstant = false
			break
		}
	}
	if pairsConstant {
		return degenerateErrf("target is constant and no usable pairs were given")
	}

	b.opts.logger.WarnContext(ctx, "constant target with pairwise data", "target", targets[0])
	return nil
}

func (b *Builder) buildColumns(ctx context.Context, perm order.Permutation) ([]Column, error) {
	results := make([]Column, b.meta.FeatureCount)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.buildThreads)

	for id := range b.kinds {
		featureID := uint32(id)
		if b.ignored.Contains(featureID) {
			continue
		}
		g.Go(func() error {
			begin := time.Now()
			col, err := b.buildColumn(ctx, featureID, perm)
			b.opts.metrics.RecordFeature(b.kinds[featureID], time.Since(begin), err)
			if err != nil {
				return err
			}
			results[featureID] = col
			// Release the raw buffer as soon as possible. The views alias
			// the same backing array, so they must be dropped too or the
			// buffer stays reachable until the builder itself is collected.
			b.blobs[featureID] = nil
			b.fviews[featureID] = rawcol.Float32View{}
			b.bviews[featureID] = rawcol.Uint8View{}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	columns := make([]Column, 0, len(results))
	for _, c := range results {
		if c != nil {
			columns = append(columns, c)
		}
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i].FeatureID() < columns[j].FeatureID() })
	return columns, nil
}

func (b *Builder) featureName(featureID uint32) string {
	if int(featureID) < len(b.meta.FeatureNames) {
		return b.meta.FeatureNames[featureID]
	}
	return ""
}

// buildColumn quantizes one feature. A nil column without error means the
// feature is degenerate and yields no column.
func (b *Builder) buildColumn(ctx context.Context, featureID uint32, perm order.Permutation) (Column, error) {
	switch b.kinds[featureID] {
	case Categorical:
		return b.buildCategorical(ctx, featureID, perm)
	case PreBinarized:
		return b.buildPreBinarized(ctx, featureID, perm)
	default:
		return b.buildNumeric(ctx, featureID, perm)
	}
}

func (b *Builder) buildNumeric(ctx context.Context, featureID uint32, perm order.Permutation) (Column, error) {
	vals := b.fviews[featureID].Floats(perm)
	mode := b.opts.registry.GetOrComputeNanMode(featureID, vals, b.opts.nanMode)

	grid, ok := b.opts.registry.Borders(featureID)
	if !ok {
		if b.opts.evalRole {
			b.opts.logger.LogFeatureSkipped(ctx, featureID, Numeric, "no registered borders in evaluation build")
			return nil, nil
		}
		computed, err := borders.Compute(vals, b.opts.binarization)
		if err != nil {
			return nil, configErrf("finish", "feature %d: %v", featureID, err)
		}
		grid = computed
		if len(computed) > 0 {
			// Another build sharing the registry may have won the race; the
			// registry's grid is authoritative either way. Empty grids are
			// never cached so a later build with richer data still gets to
			// compute borders for the feature.
			grid = b.opts.registry.SetBordersIfAbsent(featureID, computed)
		}
	}
	if len(grid) == 0 {
		b.opts.logger.LogFeatureSkipped(ctx, featureID, Numeric, "fewer than two distinct values")
		return nil, nil
	}

	bins, err := borders.Binarize(vals, grid, mode)
	if err != nil {
		return nil, consistencyErrf(err, "feature %d: %v", featureID, err)
	}

	packed, err := bitpack.Compress(bins, bitpack.Width(borders.BinCount(grid)))
	if err != nil {
		return nil, consistencyErrf(err, "feature %d: %v", featureID, err)
	}
	return &NumericColumn{
		id:      featureID,
		name:    b.featureName(featureID),
		grid:    grid,
		nanMode: mode,
		packed:  packed,
	}, nil
}

func (b *Builder) buildCategorical(ctx context.Context, featureID uint32, perm order.Permutation) (Column, error) {
	if b.opts.evalRole && b.opts.hash.UniqueValues(featureID) == 0 {
		b.opts.logger.LogFeatureSkipped(ctx, featureID, Categorical, "no registered categories in evaluation build")
		return nil, nil
	}

	raw := b.fviews[featureID].Bits(perm)
	codes := b.opts.hash.UpdateAndBinarize(featureID, raw)

	uniques := uint32(b.opts.hash.UniqueValues(featureID))
	if uniques <= 1 {
		b.opts.logger.LogFeatureSkipped(ctx, featureID, Categorical, "single category")
		return nil, nil
	}

	packed, err := bitpack.Compress(codes, bitpack.Width(uniques))
	if err != nil {
		return nil, consistencyErrf(err, "feature %d: %v", featureID, err)
	}
	return &CategoricalColumn{
		id:      featureID,
		name:    b.featureName(featureID),
		uniques: uniques,
		packed:  packed,
	}, nil
}

func (b *Builder) buildPreBinarized(ctx context.Context, featureID uint32, perm order.Permutation) (Column, error) {
	grid, ok := b.opts.registry.Borders(featureID)
	if !ok {
		return nil, configErrf("finish", "pre-binarized feature %d has no border grid", featureID)
	}

	bins := b.bviews[featureID].Bins(perm)
	binCount := borders.BinCount(grid)
	for i, bin := range bins {
		if bin >= binCount {
			return nil, consistencyErrf(nil, "feature %d: bin %d at document %d exceeds bin count %d",
				featureID, bin, i, binCount)
		}
	}

	mode, ok := b.opts.registry.NanMode(featureID)
	if !ok {
		mode = borders.NanAsIs
	}

	packed, err := bitpack.Compress(bins, bitpack.Width(binCount))
	if err != nil {
		return nil, consistencyErrf(err, "feature %d: %v", featureID, err)
	}
	return &NumericColumn{
		id:      featureID,
		name:    b.featureName(featureID),
		grid:    grid,
		nanMode: mode,
		packed:  packed,
	}, nil
}
