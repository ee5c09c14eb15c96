// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by route template, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_http_requests_total",
		Help: "HTTP requests handled, by route, method and status code.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes request latency by route template and method.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rental_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// RentalsCreated counts orders persisted.
	RentalsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rental_orders_created_total",
		Help: "Rental orders created.",
	})

	// AvailabilityRejections counts create/update attempts refused for lack of stock.
	AvailabilityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rental_availability_rejections_total",
		Help: "Rental requests rejected because not enough units were free.",
	})

	// StatusTransitions counts order status changes by target status.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_status_transitions_total",
		Help: "Rental order status changes, by new status.",
	}, []string{"status"})

	// EventPublishFailures counts events that could not be handed to the broker.
	EventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rental_event_publish_failures_total",
		Help: "Rental events that failed to publish.",
	})
)
