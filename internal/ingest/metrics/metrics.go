package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestionAttempts tracks attempts per adapter and outcome
	IngestionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_attempts_total",
			Help: "Total number of ingestion attempts",
		},
		[]string{"adapter", "status"},
	)

	// IngestionErrors tracks failures per classification
	IngestionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_errors_total",
			Help: "Total number of ingestion errors by classification",
		},
		[]string{"classification"},
	)

	// IngestionDuration tracks pipeline execution time per adapter
	IngestionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestor_pipeline_duration_seconds",
			Help:    "Adapter pipeline execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter"},
	)

	// TasksRedelivered tracks retryable failures re-enqueued with a delay
	TasksRedelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_tasks_redelivered_total",
			Help: "Total number of tasks re-enqueued for retry",
		},
		[]string{"adapter"},
	)

	// QueueDepth tracks the number of tasks waiting in the queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestor_queue_depth",
			Help: "Number of tasks currently queued",
		},
	)

	// CircuitOpen tracks breaker state per adapter (1 = open)
	CircuitOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestor_circuit_open",
			Help: "Whether the circuit breaker is open for an adapter",
		},
		[]string{"adapter"},
	)

	// RateLimitRejections tracks denied requests at the entry point
	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingestor_rate_limit_rejections_total",
			Help: "Total number of requests denied by the rate limiter",
		},
	)

	// EventsPublished tracks completion events delivered to the broker
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestor_events_published_total",
			Help: "Total number of completion events published",
		},
		[]string{"status"},
	)

	// DBConnectionPoolUsage tracks connection pool utilization percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestor_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
