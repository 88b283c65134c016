// Package prometheus records pipeline observations as Prometheus metrics.
package prometheus

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weave-nn/weaver/internal/core/ports/driven"
	"github.com/weave-nn/weaver/internal/logger"
)

const namespace = "weaver"

// Verify interface compliance at compile time.
var _ driven.Metrics = (*Metrics)(nil)

// Metrics implements driven.Metrics on a dedicated registry so that
// several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	events         *prometheus.CounterVec
	cacheWrites    *prometheus.CounterVec
	executions     *prometheus.CounterVec
	executionTime  *prometheus.HistogramVec
	stepAttempts   *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	resyncs        prometheus.Counter
	resyncDrift    prometheus.Counter
	resyncDuration prometheus.Histogram
	degraded       prometheus.Gauge
}

// New creates a Metrics recorder. When withRuntime is set the Go runtime
// and process collectors are registered alongside.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Normalised vault events emitted, by change kind.",
		}, []string{"kind"}),
		cacheWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Shadow cache write outcomes.",
		}, []string{"outcome"}),
		executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_finished_total",
			Help:      "Executions that reached a terminal or suspended state.",
		}, []string{"workflow", "state"}),
		executionTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall time from execution start to its final state.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"workflow"}),
		stepAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_attempts_total",
			Help:      "Step attempts, by workflow, step type and result.",
		}, []string{"workflow", "type", "result"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of individual step attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		resyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resyncs_total",
			Help:      "Completed vault resyncs.",
		}),
		resyncDrift: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resync_drift_total",
			Help:      "Paths found out of date by resyncs.",
		}),
		resyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resync_duration_seconds",
			Help:      "Duration of vault resyncs.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
		}),
		degraded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_degraded",
			Help:      "1 while the change source is disconnected.",
		}),
	}
}

func (m *Metrics) EventEmitted(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) CacheWrite(outcome string) {
	m.cacheWrites.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ExecutionFinished(workflowID, state string, elapsed time.Duration) {
	m.executions.WithLabelValues(workflowID, state).Inc()
	m.executionTime.WithLabelValues(workflowID).Observe(elapsed.Seconds())
}

func (m *Metrics) StepAttempt(workflowID, stepType string, success bool, elapsed time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.stepAttempts.WithLabelValues(workflowID, stepType, result).Inc()
	m.stepDuration.WithLabelValues(stepType).Observe(elapsed.Seconds())
}

func (m *Metrics) Resync(drift int, elapsed time.Duration) {
	m.resyncs.Inc()
	if drift > 0 {
		m.resyncDrift.Add(float64(drift))
	}
	m.resyncDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetDegraded(degraded bool) {
	if degraded {
		m.degraded.Set(1)
		return
	}
	m.degraded.Set(0)
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown: %v", err)
		}
	}()

	logger.Info("Metrics listening on %s/metrics", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
