// Package observability provides Prometheus metrics for the bot.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects message-flow counters.
type Metrics struct {
	// MessagesHandled counts dispatched messages by intent.
	// Labels: intent
	MessagesHandled *prometheus.CounterVec

	// RateLimited counts admissions denied by API family.
	// Labels: family
	RateLimited *prometheus.CounterVec

	// CollaboratorFailures counts downstream call failures.
	// Labels: intent
	CollaboratorFailures *prometheus.CounterVec
}

// NewMetrics creates and registers the bot's metrics with the default
// registry.
func NewMetrics() *Metrics {
	return newMetricsWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewMetricsFor registers against a caller-supplied registry. Tests use this
// to avoid duplicate registration.
func NewMetricsFor(reg prometheus.Registerer) *Metrics {
	return newMetricsWith(promauto.With(reg))
}

func newMetricsWith(factory promauto.Factory) *Metrics {
	return &Metrics{
		MessagesHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neuraflow_messages_handled_total",
			Help: "Messages dispatched, by classified intent.",
		}, []string{"intent"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neuraflow_rate_limited_total",
			Help: "Admissions denied by the per-family rate limiter.",
		}, []string{"family"}),
		CollaboratorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "neuraflow_collaborator_failures_total",
			Help: "Downstream generation/search/knowledge-base call failures.",
		}, []string{"intent"}),
	}
}
