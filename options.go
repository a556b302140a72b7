package revindex

import (
	"log/slog"
	"time"

	"github.com/hupe1980/revindex/internal/changedpath"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	commitIDLength   int
	changeIDLength   int
	cacheSize        int64
	compression      Compression
	progressInterval time.Duration
}

// Option configures Open.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring loads,
// writes, compactions and rebuilds. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &revindex.BasicMetricsCollector{}
//	s, _ := revindex.Open(ctx, blobs, ops, commits, revindex.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Writes: %d, Avg latency: %dns\n", stats.WriteCount, stats.WriteAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := revindex.NewJSONLogger(slog.LevelInfo)
//	s, _ := revindex.Open(ctx, blobs, ops, commits, revindex.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithCommitIDLength sets the commit id width in bytes. All commits of a
// repository share it. Default: 20.
func WithCommitIDLength(n int) Option {
	return func(o *options) {
		o.commitIDLength = n
	}
}

// WithChangeIDLength sets the change id width in bytes. Default: 16.
func WithChangeIDLength(n int) Option {
	return func(o *options) {
		o.changeIDLength = n
	}
}

// WithSegmentCacheSize bounds the bytes of decoded segments kept in memory
// across all loaded indexes. Default: 256 MiB.
func WithSegmentCacheSize(bytes int64) Option {
	return func(o *options) {
		o.cacheSize = bytes
	}
}

// WithChangedPathCompression selects the compression of new changed-path
// segments. Existing segments keep theirs. Default: CompressionZSTD.
func WithChangedPathCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithReindexProgressInterval sets how often progress is logged while an
// index is rebuilt from the operation log. Default: 5s.
func WithReindexProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		commitIDLength:   20,
		changeIDLength:   16,
		compression:      changedpath.CompressionZSTD,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
