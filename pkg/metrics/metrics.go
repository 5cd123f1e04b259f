// Package metrics exposes the Prometheus counters/histograms/gauges the
// executor and server record against. Grounded on postkeys'
// internal/metrics/metrics.go: a top-level promauto var block plus a
// small HTTP server wrapping promhttp.Handler, generalized from
// per-command Redis metrics to per-script Lua evaluation metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScriptEvalsTotal counts EVAL/EVALSHA invocations by outcome.
	ScriptEvalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferrous_script_evals_total",
			Help: "Total number of script evaluations by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "killed"
	)

	// ScriptEvalDuration measures wall-clock time of a script run.
	ScriptEvalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ferrous_script_eval_duration_seconds",
			Help:    "Duration of script evaluation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)

	// ScriptInstructions records the VM instruction count of completed runs.
	ScriptInstructions = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ferrous_script_instructions_executed",
			Help:    "Number of bytecode instructions executed per script run",
			Buckets: prometheus.ExponentialBuckets(8, 4, 12),
		},
	)

	// CacheHits/CacheMisses track the script-cache hit rate.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferrous_script_cache_hits_total",
			Help: "Total number of compiled-script cache hits",
		},
	)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferrous_script_cache_misses_total",
			Help: "Total number of compiled-script cache misses",
		},
	)

	// VMPoolSize is set once at startup to the configured VM pool
	// capacity; it is not updated as the executor takes or returns VMs.
	VMPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ferrous_vm_pool_idle",
			Help: "Configured capacity of the executor's VM pool (set at startup)",
		},
	)

	// ScriptKillsTotal counts SCRIPT KILL invocations that actually stopped a running script.
	ScriptKillsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ferrous_script_kills_total",
			Help: "Total number of scripts terminated via SCRIPT KILL",
		},
	)
)

// RecordEval records one script evaluation's outcome, duration, and
// instruction count in a single call site.
func RecordEval(outcome string, d time.Duration, instructions uint64) {
	ScriptEvalsTotal.WithLabelValues(outcome).Inc()
	ScriptEvalDuration.Observe(d.Seconds())
	ScriptInstructions.Observe(float64(instructions))
}

// Server serves /metrics and /health on its own listener, independent
// of the RESP front end.
type Server struct {
	http *http.Server
}

// NewServer builds (but does not start) a metrics HTTP server bound to addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return &Server{http: &http.Server{Addr: addr, Handler: mux}}
}

// Start runs the server in a background goroutine. Errors other than
// a clean Close/Shutdown are swallowed: the metrics endpoint is a
// diagnostic aid, never something the main server's availability
// should depend on.
func (s *Server) Start() {
	go func() {
		s.http.ListenAndServe()
	}()
}

// Stop shuts the metrics server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
