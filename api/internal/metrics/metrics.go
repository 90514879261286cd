// Package metrics holds the Prometheus collectors of the analysis server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for AnalysisRequests.
const (
	OutcomeItemized      = "itemized"
	OutcomeEmpty         = "empty"
	OutcomeParseFailure  = "parse_failure"
	OutcomeProviderError = "provider_error"
	OutcomeBadRequest    = "bad_request"
)

type Metrics struct {
	AnalysisRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg means a
// private registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		AnalysisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calorie_analysis_requests_total",
			Help: "Analysis requests partitioned by outcome.",
		}, []string{"outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calorie_provider_latency_seconds",
			Help:    "Latency of provider generate calls.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}, []string{"provider"}),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{m.AnalysisRequests, m.ProviderLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AnalysisRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveProvider(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderLatency.WithLabelValues(name).Observe(d.Seconds())
}

// Handler serves the registry the collectors were registered on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
