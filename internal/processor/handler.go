package processor

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sungwon/task-pipeline/internal/task"
)

// TaskHandler is the domain logic run once per delivered task. It must be
// idempotent: the same task may be handed over more than once.
type TaskHandler interface {
	HandleTask(ctx context.Context, p *task.Payload) error
}

// TaskHandlerFunc adapts a function to TaskHandler.
type TaskHandlerFunc func(ctx context.Context, p *task.Payload) error

// HandleTask calls f.
func (f TaskHandlerFunc) HandleTask(ctx context.Context, p *task.Payload) error {
	return f(ctx, p)
}

// AuditHandler writes one audit line per task at a level chosen by priority
// and counts tasks by priority.
type AuditHandler struct {
	log zerolog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(log zerolog.Logger) *AuditHandler {
	return &AuditHandler{log: log.With().Str("component", "audit").Logger()}
}

// HandleTask implements TaskHandler.
func (h *AuditHandler) HandleTask(_ context.Context, p *task.Payload) error {
	var ev *zerolog.Event
	switch p.Priority {
	case task.PriorityHigh:
		ev = h.log.Warn()
	case task.PriorityMedium:
		ev = h.log.Info()
	default:
		ev = h.log.Debug()
	}

	ev = ev.Str("task_id", p.TaskID).
		Str("title", p.Title).
		Str("priority", string(p.Priority))
	if p.DueDate != nil {
		ev = ev.Str("due_date", *p.DueDate)
	}
	ev.Msg("task audited")

	TasksByPriorityTotal.WithLabelValues(string(p.Priority)).Inc()
	return nil
}
