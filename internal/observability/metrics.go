package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cheapeats"

// Metrics holds the Prometheus counters, histograms, and gauges for the bot.
type Metrics struct {
	// Provider call metrics.
	ProviderRequests *prometheus.CounterVec   // labels: op={search,extract_price}, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec // labels: op
	ProviderCostUSD  *prometheus.CounterVec   // labels: op

	// Session outcome metrics.
	Searches     *prometheus.CounterVec // labels: outcome={ok,empty,error,invalid,stale}
	PriceUpdates *prometheus.CounterVec // labels: outcome={found,not_found,error,stale}

	PriceCache     *prometheus.CounterVec // labels: result={hit,miss}
	ActiveSessions prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Generative model requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Generative model request duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"op"}),
		ProviderCostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cost_usd_total",
			Help:      "Estimated generative model spend in USD.",
		}, []string{"op"}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Restaurant searches by outcome.",
		}, []string{"outcome"}),
		PriceUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_updates_total",
			Help:      "Menu photo price updates by outcome.",
		}, []string{"outcome"}),
		PriceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_total",
			Help:      "Menu price cache lookups by result.",
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of user sessions held in memory.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.ProviderCostUSD,
		m.Searches,
		m.PriceUpdates,
		m.PriceCache,
		m.ActiveSessions,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
