// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path", "status"})

	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_events_ingested_total",
		Help: "Total number of events accepted into the store, labelled by tenant.",
	}, []string{"tenant"})

	IngestConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_ingest_conflicts_total",
		Help: "Total number of ingestion requests rejected for a duplicate idempotency key.",
	})

	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_queries_total",
		Help: "Total number of read queries served, labelled by endpoint.",
	}, []string{"endpoint"})
)
