// Package task defines the task request accepted by the API, the canonical
// payload carried through the queue, and its JSON wire format.
package task

import (
	"time"
)

// Priority is the urgency class of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Request is a client-supplied task creation request. It is never stored;
// the ingestion service turns it into a Payload.
type Request struct {
	Title       string     `json:"title" validate:"required,max=200,notblank"`
	Description string     `json:"description" validate:"required"`
	Priority    Priority   `json:"priority" validate:"required,oneof=low medium high"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Validate checks the request against its invariants. now is the validation
// instant; a due date must be strictly later than it. Both sides are compared
// in UTC. The returned error is a *ValidationError listing every failing field.
func (r Request) Validate(now time.Time) error {
	fields := structErrors(r)

	if r.DueDate != nil && !r.DueDate.UTC().After(now.UTC()) {
		fields = append(fields, FieldError{Field: "due_date", Message: "due_date must be in the future"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Payload is the canonical task representation sent through the queue.
// TaskID is assigned once by the ingestion service and doubles as the queue
// deduplication key.
type Payload struct {
	TaskID      string   `json:"task_id" validate:"required"`
	Title       string   `json:"title" validate:"required,max=200,notblank"`
	Description string   `json:"description" validate:"required"`
	Priority    Priority `json:"priority" validate:"required,oneof=low medium high"`
	DueDate     *string  `json:"due_date"`
}

// NewPayload builds the payload for a validated request.
func NewPayload(taskID string, req Request) Payload {
	p := Payload{
		TaskID:      taskID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}
	if req.DueDate != nil {
		s := FormatDueDate(*req.DueDate)
		p.DueDate = &s
	}
	return p
}

// Validate checks a decoded payload. Upstream validation may have been
// bypassed, so the consumer re-checks every required field.
func (p Payload) Validate() error {
	if fields := structErrors(p); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
