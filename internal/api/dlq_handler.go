package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sungwon/task-pipeline/internal/logger"
	"github.com/sungwon/task-pipeline/internal/queue"
	"github.com/sungwon/task-pipeline/internal/task"
)

const (
	defaultRedriveMessages = 10
	maxRedriveMessages     = 1000
)

// redriveRequest is the JSON body for POST /api/v1/dlq/redrive.
type redriveRequest struct {
	MaxMessages int `json:"max_messages"`
}

// redriveResponse is the JSON response for a redrive operation.
type redriveResponse struct {
	Redriven int    `json:"redriven"`
	Error    string `json:"error,omitempty"`
}

// DLQRedriveHandler handles POST /api/v1/dlq/redrive.
// It moves up to max_messages dead-lettered tasks back onto the primary queue
// in their original order. An empty body redrives the default batch.
func DLQRedriveHandler(dlq queue.DeadLetterQueue, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.Enrich(r.Context(), log)

		req := redriveRequest{MaxMessages: defaultRedriveMessages}
		if err := decodeJSONObject(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			respondValidationErrors(w, []task.FieldError{decodeFieldError(err)})
			return
		}
		if req.MaxMessages < 1 || req.MaxMessages > maxRedriveMessages {
			respondValidationErrors(w, []task.FieldError{{
				Field:   "max_messages",
				Message: "max_messages must be between 1 and 1000",
			}})
			return
		}

		redriven, err := dlq.Redrive(r.Context(), req.MaxMessages)
		if err != nil {
			log.Error().Err(err).
				Int("requested", req.MaxMessages).
				Int("redriven", redriven).
				Msg("dlq redrive failed")
			respondJSON(w, http.StatusInternalServerError, redriveResponse{
				Redriven: redriven,
				Error:    "redrive failed",
			})
			return
		}

		log.Info().
			Int("requested", req.MaxMessages).
			Int("redriven", redriven).
			Msg("dlq redrive completed")

		respondJSON(w, http.StatusOK, redriveResponse{Redriven: redriven})
	}
}
