package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for fetcher operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_requests_total",
		Help: "Total request attempts by service and status",
	}, []string{"service", "status"})

	fetchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_request_duration_seconds",
		Help:    "Request attempt duration in seconds by service",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"service"})

	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_retries_total",
		Help: "Total retryable failures by service",
	}, []string{"service"})

	fetchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_retry_exhausted_total",
		Help: "Total tasks that exhausted their retry budget by service",
	}, []string{"service"})

	fetchBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_batches_total",
		Help: "Total completed batches by service",
	}, []string{"service"})

	fetchBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_batch_duration_seconds",
		Help:    "Batch duration in seconds by service",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"service"})

	fetchBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_batch_size",
		Help:    "Number of tasks per batch by service",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	}, []string{"service"})
)
