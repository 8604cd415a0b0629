// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submissions counts upload attempts by meal and outcome
	// (on_time, late, rejected, missing_input, failed).
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealcheck",
		Name:      "submissions_total",
		Help:      "Meal photo upload attempts by outcome.",
	}, []string{"meal", "outcome"})

	// Replacements counts accepted uploads that overwrote an earlier photo.
	Replacements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mealcheck",
		Name:      "submission_replacements_total",
		Help:      "Accepted uploads that replaced an existing record.",
	})

	// Orphans tracks objects left behind by a failed record write
	// (compensated, queued, cleaned, dropped).
	Orphans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealcheck",
		Name:      "orphan_objects_total",
		Help:      "Objects whose record write failed, by handling stage.",
	}, []string{"stage"})

	Exports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mealcheck",
		Name:      "exports_total",
		Help:      "Spreadsheet reports generated.",
	})

	ExportRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mealcheck",
		Name:      "export_rows",
		Help:      "Detail rows per exported report.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})

	// ExternalFailures counts failed calls to the database, object store or redis.
	ExternalFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mealcheck",
		Name:      "external_failures_total",
		Help:      "Failed or timed out external calls.",
	}, []string{"dependency"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mealcheck",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
