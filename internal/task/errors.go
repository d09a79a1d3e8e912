package task

import (
	"strings"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a request or payload violates its schema.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// DecodeError is returned when a wire payload is not a JSON object of the
// expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode task payload: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
