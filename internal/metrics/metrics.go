// Package metrics holds the Prometheus collectors for the credential flows.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "farmgate"

// Metrics groups every collector the service exports
type Metrics struct {
	loginResults         *prometheus.CounterVec
	otpIssued            prometheus.Counter
	resetResults         *prometheus.CounterVec
	sideEffectFailures   *prometheus.CounterVec
	notificationsDropped prometheus.Counter
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

// New registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		loginResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_results_total",
			Help:      "Login calls by outcome",
		}, []string{"result"}),
		otpIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "Password reset OTPs persisted",
		}),
		resetResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_reset_results_total",
			Help:      "Password reset calls by outcome",
		}, []string{"result"}),
		sideEffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Best-effort writes that failed and were swallowed",
		}, []string{"kind"}),
		notificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "OTP notifications dropped because the dispatch queue was full",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) LoginResult(result string) {
	if m == nil {
		return
	}
	m.loginResults.WithLabelValues(result).Inc()
}

func (m *Metrics) OTPIssued() {
	if m == nil {
		return
	}
	m.otpIssued.Inc()
}

func (m *Metrics) ResetResult(result string) {
	if m == nil {
		return
	}
	m.resetResults.WithLabelValues(result).Inc()
}

// SideEffectFailed counts a swallowed audit, login-attempt or notification
// write. kind is one of "audit", "login_attempt", "notification", "mail".
func (m *Metrics) SideEffectFailed(kind string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.notificationsDropped.Inc()
}

// ObserveRequest records one served HTTP request. route is the chi route
// pattern, never the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
