package queue

import (
	"encoding/json"
	"time"
)

// DLQMessage wraps a dead-lettered message with failure metadata. Body is the
// original payload, untouched.
type DLQMessage struct {
	Body            string    `json:"body"`
	TaskID          string    `json:"task_id,omitempty"`
	SourceMessageID string    `json:"source_message_id"`
	FailureReason   string    `json:"failure_reason"`
	ReceiveCount    int       `json:"receive_count"`
	MovedAt         time.Time `json:"moved_at"`
}

// NewDLQMessage builds the envelope for a failed delivery.
func NewDLQMessage(d Delivery, reason string) DLQMessage {
	return DLQMessage{
		Body:            string(d.Body),
		TaskID:          peekTaskID(d.Body),
		SourceMessageID: d.MessageID,
		FailureReason:   reason,
		ReceiveCount:    d.ReceiveCount,
		MovedAt:         time.Now().UTC(),
	}
}

// RedriveKey is the dedup key used when a dead-lettered message is sent back.
// It differs from the task id so the channel does not drop it as a duplicate
// of the original send.
func (m DLQMessage) RedriveKey() string {
	return "redrive-" + m.SourceMessageID
}

// peekTaskID extracts task_id from a payload for logging. Poison messages are
// often not valid JSON, so failure yields "".
func peekTaskID(body []byte) string {
	var probe struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.TaskID
}

// streamKey returns the Redis stream key for an ordering lane.
func streamKey(group string) string {
	return "queue:" + group
}

// dlqStreamKey returns the Redis DLQ stream key for an ordering lane.
func dlqStreamKey(group string) string {
	return "dlq:" + group
}

// dedupRedisKey returns the Redis key that remembers a dedup id for the window.
func dedupRedisKey(group, key string) string {
	return "dedup:" + group + ":" + key
}
