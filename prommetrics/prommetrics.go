// Package prommetrics exports index metrics to Prometheus.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/revindex"
)

var _ revindex.MetricsCollector = (*Collector)(nil)

// Collector implements revindex.MetricsCollector with Prometheus counters
// and histograms.
type Collector struct {
	opLatency        *prometheus.HistogramVec
	segmentsLoaded   prometheus.Histogram
	bytesWritten     prometheus.Counter
	compactions      prometheus.Counter
	foldedLevels     prometheus.Counter
	recoveredCommits prometheus.Counter
}

// New creates a Collector and registers its metrics on reg. namespace
// prefixes every metric name; it defaults to "revindex".
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if namespace == "" {
		namespace = "revindex"
	}
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of index loads, writes and rebuilds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		segmentsLoaded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loaded_segments",
			Help:      "Length of loaded segment chains",
			Buckets:   prometheus.LinearBuckets(1, 2, 16),
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "written_bytes_total",
			Help:      "Bytes of segments and operation links written",
		}),
		compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Writes that squashed existing levels",
		}),
		foldedLevels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "folded_levels_total",
			Help:      "Levels merged into new segments",
		}),
		recoveredCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_commits_total",
			Help:      "Commits indexed while rebuilding from the operation log",
		}),
	}

	for _, m := range []prometheus.Collector{
		c.opLatency,
		c.segmentsLoaded,
		c.bytesWritten,
		c.compactions,
		c.foldedLevels,
		c.recoveredCommits,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordLoad implements revindex.MetricsCollector.
func (c *Collector) RecordLoad(segments int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("load", status(err)).Observe(d.Seconds())
	if err == nil {
		c.segmentsLoaded.Observe(float64(segments))
	}
}

// RecordWrite implements revindex.MetricsCollector.
func (c *Collector) RecordWrite(bytes int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("write", status(err)).Observe(d.Seconds())
	c.bytesWritten.Add(float64(bytes))
}

// RecordCompaction implements revindex.MetricsCollector.
func (c *Collector) RecordCompaction(folded int) {
	c.compactions.Inc()
	c.foldedLevels.Add(float64(folded))
}

// RecordRecovery implements revindex.MetricsCollector.
func (c *Collector) RecordRecovery(commits int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("recovery", status(err)).Observe(d.Seconds())
	if err == nil {
		c.recoveredCommits.Add(float64(commits))
	}
}
