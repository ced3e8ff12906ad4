// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Purchase outcomes, used as the "outcome" label.
const (
	OutcomeSuccess               = "success"
	OutcomeInvalidQuantity       = "invalid_quantity"
	OutcomeInvalidRequest        = "invalid_request"
	OutcomeEventNotFound         = "event_not_found"
	OutcomeInsufficientInventory = "insufficient_inventory"
	OutcomeStorageFailure        = "storage_failure"
)

var (
	PurchaseRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tigertix_purchase_requests_total",
		Help: "Purchase attempts by outcome.",
	}, []string{"outcome"})

	TicketsSold = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tigertix_tickets_sold_total",
		Help: "Tickets sold across all committed purchases.",
	})

	PurchaseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tigertix_purchase_duration_seconds",
		Help:    "Wall time of the purchase unit of work, including lock waits.",
		Buckets: prometheus.DefBuckets,
	})

	// EventCacheRequests counts read-cache lookups by result: hit, miss or error.
	EventCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tigertix_event_cache_requests_total",
		Help: "Event read-cache lookups by result.",
	}, []string{"result"})

	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tigertix_notify_failures_total",
		Help: "Purchase-confirmed messages that could not be published.",
	})
)
