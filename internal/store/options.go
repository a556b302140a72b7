package store

import (
	"log/slog"
	"time"

	"github.com/hupe1980/revindex/internal/changedpath"
	"github.com/hupe1980/revindex/internal/level"
	"github.com/hupe1980/revindex/internal/segment"
)

// MetricsCollector receives store events.
type MetricsCollector interface {
	// RecordLoad is called after loading the index of an operation.
	RecordLoad(segments int, duration time.Duration, err error)
	// RecordWrite is called after writing the index of an operation.
	RecordWrite(bytes int, duration time.Duration, err error)
	// RecordCompaction is called when a write folds existing levels.
	RecordCompaction(folded int)
	// RecordRecovery is called after rebuilding an index from the operation log.
	RecordRecovery(commits int, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordLoad(int, time.Duration, error)     {}
func (noopMetrics) RecordWrite(int, time.Duration, error)    {}
func (noopMetrics) RecordCompaction(int)                     {}
func (noopMetrics) RecordRecovery(int, time.Duration, error) {}

// Options configures a Store.
type Options struct {
	Layout segment.Layout
	// Policy decides level squashing for commit and changed-path segments.
	Policy level.Policy
	// Compression is used for new changed-path segments.
	Compression changedpath.Compression
	// CacheSize bounds the bytes of decoded segments kept in memory.
	CacheSize int64
	// ProgressInterval throttles reindex progress logging.
	ProgressInterval time.Duration

	Logger  *slog.Logger
	Metrics MetricsCollector
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		Layout:           segment.DefaultLayout(),
		Policy:           level.DefaultPolicy(),
		Compression:      changedpath.CompressionZSTD,
		CacheSize:        256 << 20,
		ProgressInterval: 5 * time.Second,
	}
}

func (o *Options) normalize() {
	def := DefaultOptions()
	if o.Layout == (segment.Layout{}) {
		o.Layout = def.Layout
	}
	if o.Policy == nil {
		o.Policy = def.Policy
	}
	if o.CacheSize <= 0 {
		o.CacheSize = def.CacheSize
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = def.ProgressInterval
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
}
