package runtime

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	engineRequests *prometheus.CounterVec
	pageFetches    *prometheus.CounterVec
	pagesCached    prometheus.Counter
	chunksReturned prometheus.Histogram
	searchDuration *prometheus.HistogramVec
	activeSearches prometheus.Gauge
}

// NewMetrics registers the askweb collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		engineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askweb",
			Name:      "engine_requests_total",
			Help:      "Search engine result-page requests by engine and outcome.",
		}, []string{"engine", "outcome"}),
		pageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askweb",
			Name:      "page_fetches_total",
			Help:      "Detail page downloads by engine and outcome.",
		}, []string{"engine", "outcome"}),
		pagesCached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "askweb",
			Name:      "pages_cached_total",
			Help:      "Pages written to the cache directory.",
		}),
		chunksReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "askweb",
			Name:      "retrieved_chunks",
			Help:      "Chunks returned by retrieval per question.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
		}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "askweb",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		activeSearches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "askweb",
			Name:      "active_searches",
			Help:      "Searches currently holding the pipeline.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.engineRequests, m.pageFetches, m.pagesCached, m.chunksReturned, m.searchDuration, m.activeSearches,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) EngineRequest(engine string, err error) {
	if m == nil {
		return
	}
	m.engineRequests.WithLabelValues(engine, outcome(err)).Inc()
}

func (m *Metrics) PageFetch(engine string, err error) {
	if m == nil {
		return
	}
	m.pageFetches.WithLabelValues(engine, outcome(err)).Inc()
}

func (m *Metrics) PageCached() {
	if m == nil {
		return
	}
	m.pagesCached.Inc()
}

func (m *Metrics) ChunksRetrieved(n int) {
	if m == nil {
		return
	}
	m.chunksReturned.Observe(float64(n))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.searchDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SearchStarted bumps the in-flight gauge and returns the matching decrement.
func (m *Metrics) SearchStarted() func() {
	if m == nil {
		return func() {}
	}
	m.activeSearches.Inc()
	return m.activeSearches.Dec
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
