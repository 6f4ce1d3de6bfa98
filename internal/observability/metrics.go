package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IshaanNene/clearancesync/internal/engine"
)

const namespace = "clearancesync"

// Metrics exports run reports as Prometheus series. It implements
// engine.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	attemptsTotal    *prometheus.CounterVec
	productsSaved    prometheus.Counter
	productsUpdated  prometheus.Counter
	listingsDropped  *prometheus.CounterVec
	lastRunProducts  prometheus.Gauge
	lastRunDuration  prometheus.Gauge
	lastRunScrolls   prometheus.Gauge
	lastRunElements  prometheus.Gauge
	lastSuccessEpoch prometheus.Gauge

	logger *slog.Logger
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by outcome",
		}, []string{"status"}),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Sync attempts by outcome",
		}, []string{"status"}),
		productsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_saved_total",
			Help:      "Products inserted for the first time",
		}),
		productsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_updated_total",
			Help:      "Existing products refreshed",
		}),
		listingsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_dropped_total",
			Help:      "Listings discarded before persistence, by reason",
		}, []string{"reason"}),
		lastRunProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_products",
			Help:      "Products in the batch of the last run",
		}),
		lastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		lastRunScrolls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_scrolls",
			Help:      "Viewport scrolls performed by the last run",
		}),
		lastRunElements: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_elements",
			Help:      "Product elements on the page at the end of scrolling",
		}),
		lastSuccessEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.attemptsTotal,
		m.productsSaved,
		m.productsUpdated,
		m.listingsDropped,
		m.lastRunProducts,
		m.lastRunDuration,
		m.lastRunScrolls,
		m.lastRunElements,
		m.lastSuccessEpoch,
	)
	return m
}

// Record folds a finished run into the series.
func (m *Metrics) Record(_ context.Context, r *engine.RunReport) error {
	for _, a := range r.Attempts {
		if a.Error == "" {
			m.attemptsTotal.WithLabelValues("success").Inc()
		} else {
			m.attemptsTotal.WithLabelValues("failure").Inc()
		}
	}

	m.lastRunDuration.Set(r.Duration().Seconds())
	m.lastRunScrolls.Set(float64(r.Scroll.Scrolls))
	m.lastRunElements.Set(float64(r.Scroll.Count))

	if !r.Succeeded() {
		m.runsTotal.WithLabelValues("failure").Inc()
		return nil
	}

	m.runsTotal.WithLabelValues("success").Inc()
	m.productsSaved.Add(float64(r.Result.Saved))
	m.productsUpdated.Add(float64(r.Result.Updated))
	m.lastRunProducts.Set(float64(r.Result.Total))
	m.lastSuccessEpoch.Set(float64(r.FinishedAt.Unix()))

	m.listingsDropped.WithLabelValues("incomplete").Add(float64(r.Extraction.Incomplete))
	m.listingsDropped.WithLabelValues("duplicate").Add(float64(r.Extraction.Duplicates))
	m.listingsDropped.WithLabelValues("failed").Add(float64(r.Extraction.Failed))
	for stage, n := range r.Normalize.Dropped {
		m.listingsDropped.WithLabelValues(stage).Add(float64(n))
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves metrics on path and a liveness probe on /health. The
// returned server is shut down by the caller.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}
