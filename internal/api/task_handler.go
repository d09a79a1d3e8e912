package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/sungwon/task-pipeline/internal/ingest"
	"github.com/sungwon/task-pipeline/internal/logger"
	"github.com/sungwon/task-pipeline/internal/task"
)

// TaskCreator accepts validated task requests. *ingest.Service satisfies it.
type TaskCreator interface {
	Create(ctx context.Context, req task.Request) (string, error)
}

// createTaskRequest is the JSON body for POST /tasks. due_date is kept as a
// string so timestamps without an offset can be read as UTC.
type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
}

type createTaskResponse struct {
	TaskID string `json:"task_id"`
}

// CreateTaskHandler handles POST /tasks.
// Returns 201 with the new task id, 422 for any invalid body and 500 when the
// task could not be enqueued. Queue error text never reaches the caller.
func CreateTaskHandler(tasks TaskCreator, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.Enrich(r.Context(), log)

		var body createTaskRequest
		if err := decodeJSONObject(r.Body, &body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			respondValidationErrors(w, []task.FieldError{decodeFieldError(err)})
			return
		}

		req := task.Request{
			Title:       body.Title,
			Description: body.Description,
			Priority:    task.Priority(body.Priority),
		}
		if body.DueDate != nil {
			due, err := task.ParseDueDate(*body.DueDate)
			if err != nil {
				respondValidationErrors(w, []task.FieldError{{
					Field:   "due_date",
					Message: "due_date must be an ISO-8601 timestamp",
				}})
				return
			}
			req.DueDate = &due
		}

		id, err := tasks.Create(r.Context(), req)
		if err != nil {
			var verr *task.ValidationError
			if errors.As(err, &verr) {
				respondValidationErrors(w, verr.Fields)
				return
			}
			log.Error().Err(err).Msg("create task failed")
			respondError(w, http.StatusInternalServerError, ingest.ErrEnqueueFailed.Error())
			return
		}

		respondJSON(w, http.StatusCreated, createTaskResponse{TaskID: id})
	}
}

// errTrailingData is returned when a body holds more than one JSON value.
var errTrailingData = errors.New("request body must contain a single JSON object")

// decodeJSONObject decodes exactly one JSON value from body into dst.
func decodeJSONObject(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errTrailingData
	}
	return nil
}

// decodeFieldError maps a JSON decoding failure to a single field detail.
func decodeFieldError(err error) task.FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return task.FieldError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be a %s", typeErr.Field, jsonTypeName(typeErr.Type)),
		}
	}
	if errors.Is(err, io.EOF) {
		return task.FieldError{Field: "body", Message: "request body is required"}
	}
	if errors.Is(err, errTrailingData) {
		return task.FieldError{Field: "body", Message: errTrailingData.Error()}
	}
	return task.FieldError{Field: "body", Message: "request body must be a JSON object"}
}

func jsonTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.Bool:
		return "boolean"
	default:
		return t.Kind().String()
	}
}
