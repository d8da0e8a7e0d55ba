// Package metrics holds the prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "consulta"

var (
	// HTTPRequests counts handled requests.
	// Labels: method, route, status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks handler latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Aggregations counts billing aggregations.
	// Labels: result (success, error)
	Aggregations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "aggregations_total",
			Help:      "Total number of billing aggregations",
		},
		[]string{"result"},
	)

	// AggregationDuration tracks fetch + reconcile time.
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of billing aggregations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// SyncedEvents counts events handled by the sync routine.
	// Labels: outcome (created, updated, failed)
	SyncedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_total",
			Help:      "Calendar events processed by sync",
		},
		[]string{"outcome"},
	)

	// InvoicesRecalculated counts recalculated invoices.
	// Labels: outcome (updated, unchanged, failed)
	InvoicesRecalculated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "invoices_recalculated_total",
			Help:      "Invoices processed by the recalculator",
		},
		[]string{"outcome"},
	)

	// EmailsSent counts outbound emails.
	// Labels: template, result (success, error)
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "sent_total",
			Help:      "Outbound emails by template and result",
		},
		[]string{"template", "result"},
	)
)
