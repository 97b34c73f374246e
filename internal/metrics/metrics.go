// Package metrics exposes Prometheus collectors for trace generation.
//
// Collectors live on their own registry so several generators (and tests)
// can coexist in one process. All methods are safe on a nil *Metrics, which
// records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Day outcome labels.
const (
	DayOK      = "ok"
	DaySkipped = "skipped"
	DayFailed  = "failed"
)

// Metrics holds the generation collectors.
type Metrics struct {
	registry *prometheus.Registry

	daysCounter     *prometheus.CounterVec
	requestsCounter *prometheus.CounterVec
	dayLatency      *prometheus.HistogramVec
	flushCounter    prometheus.Counter
	savedBytes      *prometheus.CounterVec
	saveErrors      *prometheus.CounterVec
	workersGauge    prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		daysCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datasetgen_days_total",
				Help: "Generated days by outcome",
			},
			[]string{"strategy", "status"},
		),
		requestsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datasetgen_requests_total",
				Help: "Generated requests",
			},
			[]string{"strategy"},
		),
		dayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datasetgen_day_duration_seconds",
				Help:    "Time to generate and buffer one day",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
			},
			[]string{"strategy"},
		),
		flushCounter: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "datasetgen_flushes_total",
				Help: "Day buffers flushed to spill parts",
			},
		),
		savedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datasetgen_saved_bytes_total",
				Help: "Bytes written to output files",
			},
			[]string{"format"},
		),
		saveErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datasetgen_save_errors_total",
				Help: "Failed save attempts",
			},
			[]string{"op"},
		),
		workersGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "datasetgen_workers",
				Help: "Day generation workers of the current run",
			},
		),
	}

	m.registry.MustRegister(
		m.daysCounter,
		m.requestsCounter,
		m.dayLatency,
		m.flushCounter,
		m.savedBytes,
		m.saveErrors,
		m.workersGauge,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ObserveDay records the outcome of one day.
func (m *Metrics) ObserveDay(strategy, status string, requests int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.daysCounter.WithLabelValues(strategy, status).Inc()
	if status == DayOK {
		m.requestsCounter.WithLabelValues(strategy).Add(float64(requests))
		m.dayLatency.WithLabelValues(strategy).Observe(elapsed.Seconds())
	}
}

// ObserveFlushes records n spill part writes.
func (m *Metrics) ObserveFlushes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.flushCounter.Add(float64(n))
}

// ObserveSaved records bytes written to an output file.
func (m *Metrics) ObserveSaved(format string, bytes int64) {
	if m == nil {
		return
	}
	m.savedBytes.WithLabelValues(format).Add(float64(bytes))
}

// ObserveSaveError records a failed save or publish attempt.
func (m *Metrics) ObserveSaveError(op string) {
	if m == nil {
		return
	}
	m.saveErrors.WithLabelValues(op).Inc()
}

// SetWorkers records the worker count of the current run.
func (m *Metrics) SetWorkers(n int) {
	if m == nil {
		return
	}
	m.workersGauge.Set(float64(n))
}
