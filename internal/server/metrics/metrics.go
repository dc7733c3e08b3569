// Package metrics owns the Prometheus collectors of one server instance.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gqlauth"

// Metrics is registered on its own registry so several instances can live
// in one process.
type Metrics struct {
	registry *prometheus.Registry

	logins              *prometheus.CounterVec
	contextResolutions  *prometheus.CounterVec
	subscriptionsActive prometheus.Gauge
	sessionsSwept       prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by strategy and result",
		}, []string{"strategy", "result"}),
		contextResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_resolutions_total",
			Help:      "Execution contexts resolved, by authentication mode",
		}, []string{"mode"}),
		subscriptionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Live GraphQL subscriptions",
		}),
		sessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Expired sessions removed by the background sweeper",
		}),
	}
}

// Login records a login attempt. result is "success", "failure" or "error".
func (m *Metrics) Login(strategy, result string) {
	m.logins.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) ContextResolved(mode string) {
	m.contextResolutions.WithLabelValues(mode).Inc()
}

func (m *Metrics) SubscriptionStarted() { m.subscriptionsActive.Inc() }
func (m *Metrics) SubscriptionEnded()   { m.subscriptionsActive.Dec() }

func (m *Metrics) SessionsSwept(n int64) {
	if n > 0 {
		m.sessionsSwept.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
