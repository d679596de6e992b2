// Copyright 2025 James Ross
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_enqueued_total",
		Help: "Total number of jobs enqueued, by type",
	}, []string{"type"})
	JobsLeased = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_leased_total",
		Help: "Total number of job leases acquired by dequeue",
	})
	JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_completed_total",
		Help: "Total number of successfully completed jobs",
	})
	JobsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_failed_total",
		Help: "Total number of jobs that reached terminal failed state",
	})
	JobsRetried = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_retried_total",
		Help: "Total number of job failures that were requeued for retry",
	})
	JobProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "job_processing_duration_seconds",
		Help:    "Histogram of per-job pipeline durations",
		Buckets: prometheus.DefBuckets,
	})
	QueueStateCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_state_count",
		Help: "Current job count per queue status (queued, running, completed, failed, locked)",
	}, []string{"status"})
	CircuitBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "0 Closed, 1 HalfOpen, 2 Open",
	})
	CircuitBreakerTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "circuit_breaker_trips_total",
		Help: "Count of times the circuit breaker transitioned to Open",
	})
	ReaperRecovered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reaper_recovered_total",
		Help: "Total number of jobs recovered from expired leases by the reaper sweep",
	})
	ImagesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "images_processed_total",
		Help: "Total number of images processed by the image pipeline, by outcome",
	}, []string{"outcome"})
	CatalogUpserts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_upserts_total",
		Help: "Total number of catalog rows upserted, by entity kind",
	}, []string{"kind"})
	WorkerActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "worker_active",
		Help: "Number of active worker goroutines",
	})
)

func init() {
	prometheus.MustRegister(
		JobsEnqueued, JobsLeased, JobsCompleted, JobsFailed, JobsRetried,
		JobProcessingDuration, QueueStateCount, CircuitBreakerState,
		CircuitBreakerTrips, ReaperRecovered, ImagesProcessed, CatalogUpserts,
		WorkerActive,
	)
}
