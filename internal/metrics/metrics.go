// Package metrics exposes prometheus instrumentation for backfill passes.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector bundles the counters and histograms of the reconciliation
// engine. It owns its registry so repeated construction (tests, several
// passes in one process) never collides.
type Collector struct {
	registry *prometheus.Registry

	passesTotal  *prometheus.CounterVec
	passDuration prometheus.Histogram
	rowsTotal    *prometheus.CounterVec

	resolverBatchesTotal  prometheus.Counter
	resolverBatchDuration prometheus.Histogram
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		passesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardtrace_passes_total",
				Help: "Total number of backfill passes",
			},
			[]string{"status"}, // completed, failed
		),

		passDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "boardtrace_pass_duration_seconds",
				Help:    "Wall clock duration of a backfill pass",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
			},
		),

		rowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardtrace_rows_total",
				Help: "Rows seen by the backfill engine, by outcome",
			},
			[]string{"result"}, // updated, defaulted, skipped_no_barcode, skipped_no_trace
		),

		resolverBatchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "boardtrace_resolver_batches_total",
				Help: "Trace store batch queries issued",
			},
		),

		resolverBatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "boardtrace_resolver_batch_duration_seconds",
				Help:    "Duration of a single trace store batch query",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (c *Collector) RecordPass(status string, duration time.Duration) {
	c.passesTotal.WithLabelValues(status).Inc()
	c.passDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordRows(result string, n int) {
	if n > 0 {
		c.rowsTotal.WithLabelValues(result).Add(float64(n))
	}
}

func (c *Collector) RecordResolverBatch(duration time.Duration) {
	c.resolverBatchesTotal.Inc()
	c.resolverBatchDuration.Observe(duration.Seconds())
}

// Serve exposes /metrics on the given port until ctx is cancelled. A paced
// pass over a large table can run for a while; this lets an operator watch
// progress from prometheus in the meantime.
func (c *Collector) Serve(ctx context.Context, port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server starting", zap.Int("port", port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server failed", zap.Error(err))
	}
}
