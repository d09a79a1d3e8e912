package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_tasks_created_total",
			Help: "Total number of tasks accepted and enqueued by priority",
		},
		[]string{"priority"},
	)

	ValidationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_validation_failures_total",
			Help: "Total number of task requests rejected by validation",
		},
	)

	EnqueueFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_enqueue_failures_total",
			Help: "Total number of valid tasks that could not be enqueued",
		},
	)
)
