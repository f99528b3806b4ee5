// Package metrics defines the Prometheus instruments exported by slack-relay.
//
// All collectors register with the default registry through promauto, so the
// handler returned by Handler exposes them together with the Go runtime and
// process collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slack_relay"

// Notification outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

var (
	// notificationsTotal tracks webhook notifications by final outcome
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notification webhooks handled, by outcome",
		},
		[]string{"outcome"}, // delivered|rejected|failed
	)

	// slackCallDuration tracks Slack Web API latency per method
	slackCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slack_api_call_duration_seconds",
			Help:      "Slack Web API call duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "status"}, // status: ok|error
	)

	interactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Total number of Slack interaction and event callbacks acknowledged",
		},
		[]string{"type"},
	)

	signatureFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_failures_total",
			Help:      "Total number of requests rejected by signature verification",
		},
		[]string{"route"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		},
	)
)

// RecordNotification counts one handled notification webhook.
func RecordNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSlackCall records the latency and result of a Slack Web API call.
func ObserveSlackCall(method string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	slackCallDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
}

// RecordInteraction counts one acknowledged Slack callback.
func RecordInteraction(kind string) {
	interactionsTotal.WithLabelValues(kind).Inc()
}

// RecordSignatureFailure counts one request rejected for a bad signature.
func RecordSignatureFailure(route string) {
	signatureFailuresTotal.WithLabelValues(route).Inc()
}

// Middleware records HTTP request count, duration, and in-flight gauge.
// The path label is the matched chi route pattern, which keeps label
// cardinality bounded for unknown paths.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		duration := time.Since(start).Seconds()

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		statusLabel := strconv.Itoa(status)
		httpRequestsTotal.WithLabelValues(r.Method, path, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, statusLabel).Observe(duration)
	})
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
