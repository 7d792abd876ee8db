// Package metrics exports sqlflow executions, connection pools and template
// caches as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Konsultn-Engineering/sqlflow/cache"
	"github.com/Konsultn-Engineering/sqlflow/connector"
	"github.com/Konsultn-Engineering/sqlflow/stream"
)

// Observer records every finished execution. It implements stream.Observer.
type Observer struct {
	executions *prometheus.CounterVec
	rows       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New registers the execution metrics with stats and returns the observer
// that feeds them.
func New(stats prometheus.Registerer) *Observer {
	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlflow_executions_total",
		Help: "Number of statement executions, by operation and outcome.",
	}, []string{"op", "outcome"})
	stats.MustRegister(executions)

	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlflow_rows_total",
		Help: "Rows emitted by queries and inserts, or affected by updates.",
	}, []string{"op"})
	stats.MustRegister(rows)

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sqlflow_execution_duration_seconds",
		Help:    "Time from first pull to termination of an execution.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 9),
	}, []string{"op"})
	stats.MustRegister(duration)

	return &Observer{executions: executions, rows: rows, duration: duration}
}

func (o *Observer) Observe(e stream.Event) {
	o.executions.WithLabelValues(e.Op, e.Outcome.String()).Inc()
	o.rows.WithLabelValues(e.Op).Add(float64(e.Rows))
	o.duration.WithLabelValues(e.Op).Observe(e.Duration.Seconds())
}

var _ stream.Observer = (*Observer)(nil)

// RegisterPool exports the pool statistics of conn, read on every scrape.
func RegisterPool(stats prometheus.Registerer, conn connector.Connection) {
	gauge := func(name, help string, value func(connector.ConnectionStats) float64) {
		stats.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, func() float64 { return value(conn.Stats()) }))
	}
	gauge("sqlflow_db_open_connections", "Number of established DB connections (in-use and idle).",
		func(s connector.ConnectionStats) float64 { return float64(s.OpenConnections) })
	gauge("sqlflow_db_inuse", "Number of DB connections currently in use.",
		func(s connector.ConnectionStats) float64 { return float64(s.InUse) })
	gauge("sqlflow_db_idle", "Number of idle DB connections.",
		func(s connector.ConnectionStats) float64 { return float64(s.Idle) })
	gauge("sqlflow_db_wait_count", "Total number of DB connections waited for.",
		func(s connector.ConnectionStats) float64 { return float64(s.WaitCount) })
	gauge("sqlflow_db_wait_duration_seconds", "Total time blocked waiting for a new connection.",
		func(s connector.ConnectionStats) float64 { return s.WaitDuration.Seconds() })
}

// RegisterTemplateCache exports the hit and miss counts of c.
func RegisterTemplateCache(stats prometheus.Registerer, c *cache.TemplateCache) {
	stats.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "sqlflow_template_cache_hits_total",
		Help: "Templates served from the cache.",
	}, func() float64 {
		hits, _ := c.Stats()
		return float64(hits)
	}))
	stats.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "sqlflow_template_cache_misses_total",
		Help: "Templates parsed because they were not cached.",
	}, func() float64 {
		_, misses := c.Stats()
		return float64(misses)
	}))
}
