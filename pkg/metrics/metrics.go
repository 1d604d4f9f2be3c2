// Package metrics provides optional Prometheus instrumentation for the
// btree engine's three operations. A caller that doesn't want metrics
// simply never constructs a Metrics value; nothing in pkg/btree depends on
// this package.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds the Prometheus collectors for one engine instance.
type Metrics struct {
	opsTotal     *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
	nodesWritten prometheus.Counter
	bytesWritten prometheus.Counter
	purgeStops   prometheus.Counter
}

// New creates and registers the engine's collectors against reg. Passing
// prometheus.DefaultRegisterer matches the common single-process case.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		opsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btreeengine_operations_total",
				Help: "Total number of lookup/modify/purge calls.",
			},
			[]string{"operation", "status"},
		),
		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "btreeengine_operation_duration_seconds",
				Help:    "Duration of lookup/modify/purge calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		nodesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "btreeengine_nodes_written_total",
				Help: "Total number of nodes appended by modify/purge.",
			},
		),
		bytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "btreeengine_bytes_written_total",
				Help: "Total number of node bytes appended by modify/purge.",
			},
		),
		purgeStops: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "btreeengine_purge_stops_total",
				Help: "Total number of purge calls that ended via PurgeStop.",
			},
		),
	}
}

// RecordOp records one completed call to Lookup, Modify, or Purge.
func (m *Metrics) RecordOp(operation string, err error, duration time.Duration) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	m.opsTotal.WithLabelValues(operation, status).Inc()
	m.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFlush records one node flushed to the tree_file by modify or
// purge.
func (m *Metrics) RecordFlush(nodeBytes int) {
	m.nodesWritten.Inc()
	m.bytesWritten.Add(float64(nodeBytes))
}

// RecordPurgeStop records a purge call that unwound via PurgeStop.
func (m *Metrics) RecordPurgeStop() {
	m.purgeStops.Inc()
}
