package metrics

import (
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal tracks the number of outbound marketplace API calls.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_api_requests_total",
			Help: "Total number of marketplace API requests made (by endpoint, method, and status).",
		},
		[]string{"endpoint", "method", "status"},
	)

	// APIRequestDuration measures the duration of outbound marketplace API calls.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_api_request_duration_seconds",
			Help:    "Duration of marketplace API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint", "method"},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_token_refresh_total",
			Help: "Access token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	SessionExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_session_expired_total",
			Help: "Sessions terminated because the access token could not be refreshed.",
		},
	)

	// EventPublishErrors tracks session event forwarding failures by sink (nats, amqp).
	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_event_publish_errors_total",
			Help: "Number of session event publish failures by sink.",
		},
		[]string{"sink"},
	)
)

var numericSegment = regexp.MustCompile(`/[0-9]+(/|$)`)

// EndpointLabel collapses numeric path segments so ids do not explode label cardinality.
func EndpointLabel(path string) string {
	// two passes: adjacent ids share a slash and the first pass skips the second one
	out := numericSegment.ReplaceAllString(path, "/:id$1")
	return numericSegment.ReplaceAllString(out, "/:id$1")
}

// IncAPIRequest increments the API request counter.
func IncAPIRequest(endpoint, method, status string) {
	APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}

func IncTokenRefresh(outcome string) {
	TokenRefreshTotal.WithLabelValues(outcome).Inc()
}

func IncSessionExpired() {
	SessionExpiredTotal.Inc()
}

// IncEventPublishError increments the publish error counter for the given sink.
func IncEventPublishError(sink string) {
	EventPublishErrors.WithLabelValues(sink).Inc()
}
