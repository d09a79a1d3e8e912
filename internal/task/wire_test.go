package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	due := "2030-01-01T00:00:00.123456+02:00"
	tests := []struct {
		name    string
		payload Payload
	}{
		{
			name: "with due date",
			payload: Payload{
				TaskID:      "123e4567-e89b-12d3-a456-426614174000",
				Title:       "Test Task",
				Description: "Test Description",
				Priority:    PriorityHigh,
				DueDate:     &due,
			},
		},
		{
			name: "without due date",
			payload: Payload{
				TaskID:      "1",
				Title:       "Task 1",
				Description: "First",
				Priority:    PriorityLow,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.payload)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, *decoded)

			again, err := Encode(*decoded)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again))
		})
	}
}

func TestEncode_WireShape(t *testing.T) {
	data, err := Encode(Payload{TaskID: "1", Title: "T", Description: "D", Priority: PriorityMedium})
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"1","title":"T","description":"D","priority":"medium","due_date":null}`, string(data))
}

func TestDecode_AbsentDueDate(t *testing.T) {
	p, err := Decode([]byte(`{"task_id":"2","title":"Task 2","description":"Second","priority":"medium"}`))
	require.NoError(t, err)
	assert.Nil(t, p.DueDate)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDecode bool
		wantField  string
	}{
		{name: "not json", body: "not-valid-json", wantDecode: true},
		{name: "array", body: `[1,2]`, wantDecode: true},
		{name: "mistyped title", body: `{"task_id":"1","title":5,"description":"d","priority":"low"}`, wantDecode: true},
		{name: "mistyped due date", body: `{"task_id":"1","title":"t","description":"d","priority":"low","due_date":7}`, wantDecode: true},
		{name: "missing task id", body: `{"title":"t","description":"d","priority":"low"}`, wantField: "task_id"},
		{name: "empty title", body: `{"task_id":"123","title":"","description":"d","priority":"low"}`, wantField: "title"},
		{name: "whitespace title", body: `{"task_id":"123","title":"  ","description":"d","priority":"low"}`, wantField: "title"},
		{name: "invalid priority", body: `{"task_id":"123","title":"t","description":"d","priority":"urgent"}`, wantField: "priority"},
		{name: "null description", body: `{"task_id":"123","title":"t","description":null,"priority":"low"}`, wantField: "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, p)

			var derr *DecodeError
			if tt.wantDecode {
				assert.True(t, errors.As(err, &derr), "expected *DecodeError, got %T", err)
				return
			}
			assert.False(t, errors.As(err, &derr))
			assert.Equal(t, []string{tt.wantField}, fieldNames(t, err))
		})
	}
}

func TestParseDueDate(t *testing.T) {
	got, err := ParseDueDate("2030-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))

	got, err = ParseDueDate("2030-01-01T02:00:00+02:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, got.Location())

	// Naive timestamps are read as UTC.
	got, err = ParseDueDate("2030-01-01T00:00:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, err = ParseDueDate("not-a-date")
	assert.Error(t, err)
}
