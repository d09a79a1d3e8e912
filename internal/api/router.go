package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sungwon/task-pipeline/internal/queue"
)

// Deps are the collaborators the router dispatches to. DLQ and Ready are
// optional; without a DLQ the redrive endpoint is not registered.
type Deps struct {
	Tasks TaskCreator
	DLQ   queue.DeadLetterQueue
	Ready ReadinessCheck
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
func NewRouter(deps Deps, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(MetricsMiddleware)
	r.Use(RecoverMiddleware(log))
	r.Use(BodyLimitMiddleware(MaxBodyBytes))

	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(deps.Ready))
	r.Handle("/metrics", promhttp.Handler())

	createTask := CreateTaskHandler(deps.Tasks, log)
	r.Post("/tasks", createTask)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tasks", createTask)

		if deps.DLQ != nil {
			r.Post("/dlq/redrive", DLQRedriveHandler(deps.DLQ, log))
		}
	})

	return r
}
