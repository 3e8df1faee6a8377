package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/cardaffinity/internal/platform/envutil"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

// Metrics holds the engine's Prometheus collectors on a private registry.
// Every method is safe on a nil receiver so components can run without
// metrics configured.
type Metrics struct {
	registry *prometheus.Registry

	batches          *prometheus.CounterVec
	pairsApplied     prometheus.Counter
	entriesDropped   *prometheus.CounterVec
	selfLoopsRemoved prometheus.Counter
	passDuration     *prometheus.HistogramVec
	passTotal        *prometheus.CounterVec
	communities      prometheus.Gauge
	modularity       prometheus.Gauge
	suggestLatency   *prometheus.HistogramVec
	suggestResults   prometheus.Histogram
}

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardaffinity_ingest_batches_total",
			Help: "Decklist batches processed by outcome.",
		}, []string{"status"}),
		pairsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardaffinity_ingest_pairs_applied_total",
			Help: "Pair occurrences written to CONNECTED edges.",
		}),
		entriesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardaffinity_ingest_entries_dropped_total",
			Help: "Decklist entries or pairs skipped during ingestion by reason.",
		}, []string{"reason"}),
		selfLoopsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardaffinity_self_loops_removed_total",
			Help: "Self-loop CONNECTED edges deleted by cleanup.",
		}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardaffinity_pass_duration_seconds",
			Help:    "Duration of graph-wide passes.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"pass", "status"}),
		passTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardaffinity_pass_total",
			Help: "Graph-wide passes by pass and outcome.",
		}, []string{"pass", "status"}),
		communities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cardaffinity_communities",
			Help: "Communities written by the last partitioning run.",
		}),
		modularity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cardaffinity_modularity",
			Help: "Modularity of the last partitioning run.",
		}),
		suggestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardaffinity_suggest_duration_seconds",
			Help:    "Suggestion query latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"status"}),
		suggestResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardaffinity_suggest_results",
			Help:    "Number of suggestions returned per query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}),
	}
	reg.MustRegister(
		m.batches, m.pairsApplied, m.entriesDropped, m.selfLoopsRemoved,
		m.passDuration, m.passTotal, m.communities, m.modularity,
		m.suggestLatency, m.suggestResults,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveBatch(status string, pairs int64) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status).Inc()
	if pairs > 0 {
		m.pairsApplied.Add(float64(pairs))
	}
}

func (m *Metrics) AddDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entriesDropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) AddSelfLoopsRemoved(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.selfLoopsRemoved.Add(float64(n))
}

func (m *Metrics) ObservePass(pass string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	status := statusOf(err)
	m.passDuration.WithLabelValues(pass, status).Observe(dur.Seconds())
	m.passTotal.WithLabelValues(pass, status).Inc()
}

func (m *Metrics) SetPartition(communities int, modularity float64) {
	if m == nil {
		return
	}
	m.communities.Set(float64(communities))
	m.modularity.Set(modularity)
}

func (m *Metrics) ObserveSuggest(err error, results int, dur time.Duration) {
	if m == nil {
		return
	}
	m.suggestLatency.WithLabelValues(statusOf(err)).Observe(dur.Seconds())
	if err == nil {
		m.suggestResults.Observe(float64(results))
	}
}

// StartServer exposes /metrics on addr until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
