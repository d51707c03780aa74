package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appmarket_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appmarket_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Domain metrics
	credentialsRotatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appmarket_credentials_rotated_total",
			Help: "Total number of client credential sets issued",
		},
	)

	credentialFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appmarket_credential_failures_total",
			Help: "Credential issuance failures by kind",
		},
		[]string{"kind"},
	)

	reviewsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appmarket_reviews_submitted_total",
			Help: "Total number of accepted reviews",
		},
	)

	subscriptionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appmarket_subscriptions_created_total",
			Help: "Total number of subscriptions started",
		},
	)

	// Error metrics
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appmarket_errors_total",
			Help: "Total number of error responses by type",
		},
		[]string{"type"},
	)
)

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			// The route pattern is only known once chi has routed the request.
			path := normalizePath(r)
			status := strconv.Itoa(wrapped.status)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())

			if wrapped.status >= 400 {
				errorType := "client_error"
				if wrapped.status >= 500 {
					errorType = "server_error"
				}
				errorsTotal.WithLabelValues(errorType).Inc()
			}
		})
	}
}

// normalizePath normalizes URL paths to prevent cardinality explosion.
func normalizePath(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}

	// /v1/apps/550e8400-e29b-41d4-a716-446655440000 -> /v1/apps/{id}
	segments := strings.Split(r.URL.Path, "/")
	for i, seg := range segments {
		if len(seg) == 36 && strings.Count(seg, "-") == 4 {
			segments[i] = "{id}"
		}
		// ULID pattern (26 chars alphanumeric)
		if len(seg) == 26 && isAlphanumeric(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func isAlphanumeric(s string) bool {
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// IncrementCredentialsRotated counts an issued credential set.
func IncrementCredentialsRotated() {
	credentialsRotatedTotal.Inc()
}

// IncrementCredentialFailure counts a failed issuance by error code.
func IncrementCredentialFailure(kind string) {
	credentialFailuresTotal.WithLabelValues(kind).Inc()
}

// IncrementReviewsSubmitted counts an accepted review.
func IncrementReviewsSubmitted() {
	reviewsSubmittedTotal.Inc()
}

// IncrementSubscriptionsCreated counts a started subscription.
func IncrementSubscriptionsCreated() {
	subscriptionsCreatedTotal.Inc()
}
