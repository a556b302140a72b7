package revindex

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// package prommetrics provides a ready-made implementation.
type MetricsCollector interface {
	// RecordLoad is called after the index of an operation was loaded.
	// segments is the length of the loaded segment chain, err is nil if
	// successful.
	RecordLoad(segments int, duration time.Duration, err error)

	// RecordWrite is called after the index of an operation was written.
	// bytes counts segment and link bytes stored.
	RecordWrite(bytes int, duration time.Duration, err error)

	// RecordCompaction is called when a write folds existing levels into the
	// new segment. folded is the number of levels merged.
	RecordCompaction(folded int)

	// RecordRecovery is called after an index was rebuilt from the operation
	// log. commits is the number of commits that had to be indexed.
	RecordRecovery(commits int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordCompaction(int)                     {}
func (NoopMetricsCollector) RecordRecovery(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	LoadSegments     atomic.Int64
	LoadTotalNanos   atomic.Int64
	WriteCount       atomic.Int64
	WriteErrors      atomic.Int64
	WriteBytes       atomic.Int64
	WriteTotalNanos  atomic.Int64
	CompactionCount  atomic.Int64
	FoldedLevels     atomic.Int64
	RecoveryCount    atomic.Int64
	RecoveryErrors   atomic.Int64
	RecoveredCommits atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(segments int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadSegments.Add(int64(segments))
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	b.WriteBytes.Add(int64(bytes))
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordCompaction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompaction(folded int) {
	b.CompactionCount.Add(1)
	b.FoldedLevels.Add(int64(folded))
}

// RecordRecovery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecovery(commits int, _ time.Duration, err error) {
	b.RecoveryCount.Add(1)
	if err != nil {
		b.RecoveryErrors.Add(1)
		return
	}
	b.RecoveredCommits.Add(int64(commits))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
		LoadAvgNanos:     avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		WriteCount:       b.WriteCount.Load(),
		WriteErrors:      b.WriteErrors.Load(),
		WriteBytes:       b.WriteBytes.Load(),
		WriteAvgNanos:    avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		CompactionCount:  b.CompactionCount.Load(),
		FoldedLevels:     b.FoldedLevels.Load(),
		RecoveryCount:    b.RecoveryCount.Load(),
		RecoveryErrors:   b.RecoveryErrors.Load(),
		RecoveredCommits: b.RecoveredCommits.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount        int64
	LoadErrors       int64
	LoadAvgNanos     int64
	WriteCount       int64
	WriteErrors      int64
	WriteBytes       int64
	WriteAvgNanos    int64
	CompactionCount  int64
	FoldedLevels     int64
	RecoveryCount    int64
	RecoveryErrors   int64
	RecoveredCommits int64
}

// observer forwards store events to the configured collector and logger.
type observer struct {
	metrics MetricsCollector
	logger  *Logger
}

func (o observer) RecordLoad(segments int, d time.Duration, err error) {
	o.logger.LogLoad(segments, d, err)
	o.metrics.RecordLoad(segments, d, err)
}

func (o observer) RecordWrite(bytes int, d time.Duration, err error) {
	o.logger.LogWrite(bytes, d, err)
	o.metrics.RecordWrite(bytes, d, err)
}

func (o observer) RecordCompaction(folded int) {
	o.logger.LogCompaction(folded)
	o.metrics.RecordCompaction(folded)
}

func (o observer) RecordRecovery(commits int, d time.Duration, err error) {
	o.logger.LogRecovery(commits, d, err)
	o.metrics.RecordRecovery(commits, d, err)
}
