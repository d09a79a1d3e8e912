package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sungwon/task-pipeline/internal/task"
)

func TestAuditHandler_LevelByPriority(t *testing.T) {
	tests := []struct {
		priority task.Priority
		level    string
	}{
		{task.PriorityHigh, "warn"},
		{task.PriorityMedium, "info"},
		{task.PriorityLow, "debug"},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			var buf bytes.Buffer
			h := NewAuditHandler(zerolog.New(&buf).Level(zerolog.DebugLevel))

			due := "2031-01-01T00:00:00Z"
			err := h.HandleTask(context.Background(), &task.Payload{
				TaskID: "t-1", Title: "t", Description: "d", Priority: tt.priority, DueDate: &due,
			})
			require.NoError(t, err)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "t-1", entry["task_id"])
			assert.Equal(t, due, entry["due_date"])
		})
	}
}

func TestTaskHandlerFunc(t *testing.T) {
	var got string
	h := TaskHandlerFunc(func(_ context.Context, p *task.Payload) error {
		got = p.TaskID
		return nil
	})
	require.NoError(t, h.HandleTask(context.Background(), &task.Payload{TaskID: "abc"}))
	assert.Equal(t, "abc", got)
}
