package quantpool

import (
	"runtime"

	"github.com/hupe1980/quantpool/borders"
	"github.com/hupe1980/quantpool/meta"
	"github.com/hupe1980/quantpool/perfecthash"
)

// TargetTransform rewrites targets (and optionally weights) in place after
// the permutation is decided but before validation, e.g. for rank-based
// target encoding.
type TargetTransform func(targets, weights []float32) error

type options struct {
	logger       *Logger
	metrics      MetricsCollector
	shuffle      bool
	seed         int64
	buildThreads int
	binarization borders.Config
	nanMode      borders.NanMode
	registry     *meta.Registry
	hash         *perfecthash.Registry
	transform    TargetTransform
	evalRole     bool
}

// Option configures a Builder.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:       NoopLogger(),
		metrics:      NoopMetricsCollector{},
		shuffle:      true,
		seed:         0,
		buildThreads: runtime.GOMAXPROCS(0),
		binarization: borders.DefaultConfig,
		nanMode:      borders.NanIsMin,
	}
}

func applyOptions(optFns ...Option) options {
	opts := defaultOptions()
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	if opts.registry == nil {
		opts.registry = meta.NewRegistry()
	}
	if opts.hash == nil {
		opts.hash = perfecthash.NewRegistry()
	}
	return opts
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector. Defaults to no-op.
func WithMetrics(collector MetricsCollector) Option {
	return func(o *options) {
		if collector != nil {
			o.metrics = collector
		}
	}
}

// WithShuffle enables or disables document shuffling. Enabled by default;
// ignored whenever any timestamp is set.
func WithShuffle(enabled bool) Option {
	return func(o *options) { o.shuffle = enabled }
}

// WithSeed sets the shuffle seed. Builds with the same seed and input
// produce the same permutation.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithBuildThreads bounds the number of feature columns built in parallel.
// Defaults to GOMAXPROCS.
func WithBuildThreads(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buildThreads = n
		}
	}
}

// WithBinarization sets the border computation config (border cap, grid
// strategy).
func WithBinarization(cfg borders.Config) Option {
	return func(o *options) { o.binarization = cfg }
}

// WithNanMode sets the preferred NaN mode applied to numeric features that
// contain NaNs. Defaults to borders.NanIsMin.
func WithNanMode(mode borders.NanMode) Option {
	return func(o *options) { o.nanMode = mode }
}

// WithFeatureMeta shares a metadata registry between builds. Grids cached
// by an earlier build are reused instead of recomputed, keeping bin
// indices comparable across datasets.
func WithFeatureMeta(registry *meta.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithPerfectHash shares a categorical perfect-hash registry between
// builds so codes stay stable across datasets.
func WithPerfectHash(registry *perfecthash.Registry) Option {
	return func(o *options) { o.hash = registry }
}

// WithTargetTransform sets a transform applied to targets after
// permutation.
func WithTargetTransform(fn TargetTransform) Option {
	return func(o *options) { o.transform = fn }
}

// WithEvalRole marks the build as an evaluation pool. Evaluation builds
// never compute borders or grow perfect-hash tables beyond what earlier
// learn builds registered; features unseen by any learn build are skipped.
func WithEvalRole(eval bool) Option {
	return func(o *options) { o.evalRole = eval }
}
