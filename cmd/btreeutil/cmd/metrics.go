package cmd

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	btreemetrics "github.com/freyjadb/btreeengine/pkg/metrics"
)

var metricsAddr string

// collector is set by maybeStartMetrics whether or not --metrics-addr was
// given; every subcommand's Modify/Lookup/Purge call reports through it.
var collector *btreemetrics.Metrics

func init() {
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9100) for the duration of the command")
}

// maybeStartMetrics wires up pkg/metrics and, if --metrics-addr is set,
// serves /metrics via promhttp.Handler() on a background listener for the
// duration of the command.
func maybeStartMetrics() {
	collector = btreemetrics.New(prometheus.DefaultRegisterer)
	if metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics listener stopped: %v", err)
		}
	}()
}

// instrumentOp times fn and records it against operation in collector,
// which is always non-nil after maybeStartMetrics runs (RecordOp is a
// cheap in-memory counter increment even when nothing scrapes /metrics).
func instrumentOp(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if collector != nil {
		collector.RecordOp(operation, err, time.Since(start))
	}
	return err
}

// onFlush is passed as ModifyOptions.OnFlush/PurgeOptions.OnFlush so every
// node a command writes is counted, regardless of whether --metrics-addr
// was set.
func onFlush(nodeBytes int) {
	if collector != nil {
		collector.RecordFlush(nodeBytes)
	}
}
