package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_records_total",
			Help: "Total number of delivered records by outcome",
		},
		[]string{"status"}, // processed, skipped, failed
	)

	TasksByPriorityTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_tasks_by_priority_total",
			Help: "Total number of audited tasks by priority",
		},
		[]string{"priority"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "processor_batch_duration_seconds",
			Help:    "Duration of batch processing",
			Buckets: prometheus.DefBuckets,
		},
	)
)
