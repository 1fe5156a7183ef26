package monitoring

import (
	"net/http"
	"time"

	"cashledger/logx"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ledgerPromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	operationCount    *prometheus.CounterVec
	failedOpCount     *prometheus.CounterVec
	panicCount        prometheus.Counter
}

var metrics = &ledgerPromMetrics{
	nodeUpUnixSeconds: promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashledger_node_up_unix_seconds",
		Help: "Unix timestamp when the node came up",
	}),
	operationCount: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cashledger_operation_count",
		Help: "Number of ledger operations invoked, by operation",
	}, []string{"operation"}),
	failedOpCount: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cashledger_failed_operation_count",
		Help: "Number of failed ledger operations, by operation and reason",
	}, []string{"operation", "reason"}),
	panicCount: promauto.NewCounter(prometheus.CounterOpts{
		Name: "cashledger_panic_count",
		Help: "Number of recovered panics",
	}),
}

func IncreaseOperationCount(operation string) {
	metrics.operationCount.WithLabelValues(operation).Inc()
}

func IncreaseFailedOperationCount(operation string, reason string) {
	metrics.failedOpCount.WithLabelValues(operation, reason).Inc()
}

func IncreasePanicCount() {
	metrics.panicCount.Inc()
}

// StartMetricsServer exposes /metrics on addr. Spawns its own goroutine
// directly because exception depends on this package.
func StartMetricsServer(addr string) {
	metrics.nodeUpUnixSeconds.Set(float64(time.Now().Unix()))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logx.Error("MONITORING", "Metrics server stopped:", err.Error())
		}
	}()
}
