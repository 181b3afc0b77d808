// Package metrics exposes ingestion counters in the Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hydroingest/internal/logging"
)

const namespace = "hydroingest"

// Metric names.
const (
	MetricFiles         = "files_total"
	MetricRowsWritten   = "rows_written_total"
	MetricCompensations = "compensations_total"
	MetricClampedValues = "clamped_values_total"
	MetricLastBatch     = "last_batch_timestamp_seconds"
)

// Metrics holds the collectors of one process. A nil *Metrics ignores every
// update so callers never need to check.
type Metrics struct {
	registry      *prometheus.Registry
	files         *prometheus.CounterVec
	rows          *prometheus.CounterVec
	compensations *prometheus.CounterVec
	clamped       prometheus.Counter
	lastBatch     prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricFiles,
			Help:      "Measurement files finished, by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricRowsWritten,
			Help:      "Rows committed to the measurement store, by table.",
		}, []string{"table"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricCompensations,
			Help:      "Compensating deletes attempted after a failed write.",
		}, []string{"table", "result"}),
		clamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricClampedValues,
			Help:      "Values replaced by the clamp sentinel.",
		}),
		lastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricLastBatch,
			Help:      "Unix time the last batch finished.",
		}),
	}
	m.registry.MustRegister(m.files, m.rows, m.compensations, m.clamped, m.lastBatch)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// FileFinished counts a file that reached outcome ("archived", "quarantined").
func (m *Metrics) FileFinished(outcome string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(outcome).Inc()
}

// RowsWritten adds n committed rows for table.
func (m *Metrics) RowsWritten(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(table).Add(float64(n))
}

// Compensation counts one compensating delete.
func (m *Metrics) Compensation(table string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.compensations.WithLabelValues(table, result).Inc()
}

// Clamped adds n clamped values.
func (m *Metrics) Clamped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.clamped.Add(float64(n))
}

// BatchFinished records the completion time of a batch.
func (m *Metrics) BatchFinished(at time.Time) {
	if m == nil {
		return
	}
	m.lastBatch.Set(float64(at.Unix()))
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on bind until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, bind string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if logger != nil {
		logger.Info("metrics endpoint listening", logging.String("bind", bind))
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
