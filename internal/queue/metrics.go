package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue metrics for Prometheus monitoring.
var (
	MessagesEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_enqueued_total",
			Help: "Total number of messages accepted by the channel per provider",
		},
		[]string{"provider"},
	)

	SendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_send_failures_total",
			Help: "Total number of sends that failed after retries per provider",
		},
		[]string{"provider"},
	)

	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_send_retries_total",
			Help: "Total number of send retries after transient failures",
		},
	)

	MessagesDeduplicatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_deduplicated_total",
			Help: "Total number of sends collapsed into an earlier message by dedup key",
		},
		[]string{"provider"},
	)

	BatchesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_batches_processed_total",
			Help: "Total number of delivered batches by status",
		},
		[]string{"status"}, // acked, released, dlq
	)

	BatchProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_batch_processing_duration_seconds",
			Help:    "Duration of batch processing operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	DLQMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_dlq_messages_total",
			Help: "Total number of messages moved to DLQ by reason",
		},
		[]string{"reason"},
	)
)
