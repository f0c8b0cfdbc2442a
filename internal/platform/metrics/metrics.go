// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts handled requests by route pattern and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration observes request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "course_http_request_duration_seconds",
			Help:    "Time spent handling HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Generations counts curriculum generation outcomes.
	Generations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_generations_total",
			Help: "Total number of course generation requests",
		},
		[]string{"status"}, // success, generation_failed, storage_failed, budget_exceeded
	)

	// GenerationDuration observes the language model call alone.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "course_generation_duration_seconds",
			Help:    "Time spent waiting for the language model to produce a curriculum",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90},
		},
	)

	// AITokens counts tokens consumed by generation calls.
	AITokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_ai_tokens_total",
			Help: "Language model tokens consumed",
		},
		[]string{"direction"}, // input, output
	)

	// CertificatesIssued counts issued certificates.
	CertificatesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "course_certificates_issued_total",
			Help: "Total number of certificates issued",
		},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
