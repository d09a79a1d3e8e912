package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sungwon/task-pipeline/internal/queue"
)

func TestNewRouter_Routes(t *testing.T) {
	q := queue.NewMemoryQueue()
	router := NewRouter(Deps{
		Tasks: newTaskService(q),
		DLQ:   queue.NewMemoryDLQ(q),
		Ready: func(ctx context.Context) error { return nil },
	}, zerolog.Nop())

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/tasks", `{"title":"t","description":"d","priority":"low"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/tasks", `{"title":"t","description":"d","priority":"low"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/dlq/redrive", `{"max_messages":1}`, http.StatusOK},
		{http.MethodGet, "/tasks", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d; body: %s", tt.want, rec.Code, rec.Body.String())
			}
			if rec.Header().Get("X-Correlation-ID") == "" {
				t.Error("expected X-Correlation-ID header")
			}
		})
	}
}

func TestNewRouter_NoDLQ(t *testing.T) {
	router := NewRouter(Deps{Tasks: newTaskService(queue.NewMemoryQueue())}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dlq/redrive", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}
