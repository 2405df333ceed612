package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa as métricas do serviço. Um *Metrics nil ignora todas as chamadas.
type Metrics struct {
	VerdictsTotal         *prometheus.CounterVec
	DispatchTotal         *prometheus.CounterVec
	DispatchDuration      *prometheus.HistogramVec
	TrackedIdentities     prometheus.Gauge
	LimiterCleanupRemoved prometheus.Counter
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New registra as métricas em reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		VerdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mayfly_admission_verdicts_total",
			Help: "Total number of admission verdicts by outcome",
		}, []string{"outcome"}),
		DispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mayfly_email_dispatch_total",
			Help: "Total number of email dispatch attempts by provider and status",
		}, []string{"provider", "status"}),
		DispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mayfly_email_dispatch_duration_seconds",
			Help:    "Duration of email provider calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		TrackedIdentities: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mayfly_ratelimit_tracked_identities",
			Help: "Current number of client identities held by the rate limiter",
		}),
		LimiterCleanupRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "mayfly_ratelimit_cleanup_removed_total",
			Help: "Total number of idle identities evicted by the limiter janitor",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mayfly_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mayfly_http_request_duration_seconds",
			Help:    "Latency of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) IncrementVerdict(outcome string) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDispatch(provider, status string, start time.Time) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(provider, status).Inc()
	m.DispatchDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetTrackedIdentities(count int) {
	if m == nil {
		return
	}
	m.TrackedIdentities.Set(float64(count))
}

func (m *Metrics) IncrementCleanupRemoved(count int) {
	if m == nil {
		return
	}
	m.LimiterCleanupRemoved.Add(float64(count))
}

func (m *Metrics) ObserveHTTPRequest(route, method, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(durationSeconds)
}
