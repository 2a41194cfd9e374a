package quantpool

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting build metrics.
// Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// RecordBlock records one appended document block.
	RecordBlock(docs int)

	// RecordFeature records the build of one feature column.
	RecordFeature(kind ValueKind, duration time.Duration, err error)

	// RecordFinish records the outcome of a Finish call.
	RecordFinish(docs, columns int, duration time.Duration, err error)
}

// NoopMetricsCollector is a metrics collector that does nothing.
// Use this to disable metrics collection.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBlock(docs int) {}

func (NoopMetricsCollector) RecordFeature(kind ValueKind, duration time.Duration, err error) {}

func (NoopMetricsCollector) RecordFinish(docs, columns int, duration time.Duration, err error) {}

// BasicMetricsCollector collects metrics using atomic counters.
// Safe for concurrent use.
type BasicMetricsCollector struct {
	blocks          atomic.Int64
	docsAppended    atomic.Int64
	featuresBuilt   atomic.Int64
	featureErrors   atomic.Int64
	featureDuration atomic.Int64 // nanoseconds
	finishes        atomic.Int64
	finishErrors    atomic.Int64
	columnsEmitted  atomic.Int64
}

// NewBasicMetricsCollector creates a new BasicMetricsCollector.
func NewBasicMetricsCollector() *BasicMetricsCollector {
	return &BasicMetricsCollector{}
}

func (m *BasicMetricsCollector) RecordBlock(docs int) {
	m.blocks.Add(1)
	m.docsAppended.Add(int64(docs))
}

func (m *BasicMetricsCollector) RecordFeature(kind ValueKind, duration time.Duration, err error) {
	m.featuresBuilt.Add(1)
	m.featureDuration.Add(int64(duration))
	if err != nil {
		m.featureErrors.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordFinish(docs, columns int, duration time.Duration, err error) {
	m.finishes.Add(1)
	m.columnsEmitted.Add(int64(columns))
	if err != nil {
		m.finishErrors.Add(1)
	}
}

// BuildStats is a snapshot of collected metrics.
type BuildStats struct {
	Blocks          int64
	DocsAppended    int64
	FeaturesBuilt   int64
	FeatureErrors   int64
	FeatureDuration time.Duration
	Finishes        int64
	FinishErrors    int64
	ColumnsEmitted  int64
}

// GetStats returns a snapshot of the current metrics.
func (m *BasicMetricsCollector) GetStats() BuildStats {
	return BuildStats{
		Blocks:          m.blocks.Load(),
		DocsAppended:    m.docsAppended.Load(),
		FeaturesBuilt:   m.featuresBuilt.Load(),
		FeatureErrors:   m.featureErrors.Load(),
		FeatureDuration: time.Duration(m.featureDuration.Load()),
		Finishes:        m.finishes.Load(),
		FinishErrors:    m.finishErrors.Load(),
		ColumnsEmitted:  m.columnsEmitted.Load(),
	}
}
