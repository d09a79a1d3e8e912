package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relvacode/iso8601"
)

// Encode serializes a payload to its UTF-8 JSON wire form. A missing due
// date is written as null.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal task payload: %w", err)
	}
	return data, nil
}

// Decode parses and validates a wire payload. Malformed JSON or mistyped
// fields yield a *DecodeError, missing or invalid fields a *ValidationError.
func Decode(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseDueDate parses an ISO-8601 timestamp. A value without a zone offset
// is taken to be UTC.
func ParseDueDate(s string) (time.Time, error) {
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse due_date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDueDate renders a due date as RFC 3339 in UTC.
func FormatDueDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
