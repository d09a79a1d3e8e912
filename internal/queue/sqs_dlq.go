package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// SQSDLQ manages dead letter queue operations backed by an SQS FIFO queue.
type SQSDLQ struct {
	client  sqsAPI
	dlqURL  string
	primary Provider
	log     zerolog.Logger
}

// NewSQSDLQ creates a new SQSDLQ targeting the given DLQ URL. The primary
// provider is used by Redrive to send messages back.
func NewSQSDLQ(client sqsAPI, dlqURL string, primary Provider, log zerolog.Logger) (*SQSDLQ, error) {
	if dlqURL == "" {
		return nil, ErrMissingQueueURL
	}
	return &SQSDLQ{
		client:  client,
		dlqURL:  dlqURL,
		primary: primary,
		log:     log,
	}, nil
}

// MoveToDLQ wraps the failed delivery in a DLQMessage envelope and sends it
// to the dead letter queue.
func (d *SQSDLQ) MoveToDLQ(ctx context.Context, del Delivery, reason string) error {
	data, err := json.Marshal(NewDLQMessage(del, reason))
	if err != nil {
		return fmt.Errorf("marshal dlq message: %w", err)
	}

	out, err := d.client.SendMessage(ctx, &sqsSendInput{
		QueueURL:        d.dlqURL,
		MessageBody:     string(data),
		GroupID:         GroupKey,
		DeduplicationID: "dlq-" + del.MessageID,
	})
	if err != nil {
		return fmt.Errorf("sqs send to dlq: %w", err)
	}
	if out.MessageID == "" {
		return ErrMissingMessageID
	}

	DLQMessagesTotal.WithLabelValues(reason).Inc()

	return nil
}

// Redrive reads up to max messages from the DLQ, sends each original body
// back through the primary provider, and deletes it from the DLQ. It stops at
// the first failure so the DLQ keeps its order.
func (d *SQSDLQ) Redrive(ctx context.Context, max int) (int, error) {
	redriven := 0
	for redriven < max {
		batch := max - redriven
		if batch > 10 {
			batch = 10
		}

		out, err := d.client.ReceiveMessage(ctx, &sqsReceiveInput{
			QueueURL:            d.dlqURL,
			MaxNumberOfMessages: int32(batch),
			WaitTimeSeconds:     0, // no long-poll for redrive
			VisibilityTimeout:   30,
		})
		if err != nil {
			return redriven, fmt.Errorf("sqs receive from dlq: %w", err)
		}
		if len(out.Messages) == 0 {
			return redriven, nil
		}

		for _, sqsMsg := range out.Messages {
			var dlqMsg DLQMessage
			if err := json.Unmarshal([]byte(sqsMsg.Body), &dlqMsg); err != nil {
				return redriven, fmt.Errorf("decode dlq message %s: %w", sqsMsg.MessageID, err)
			}

			if _, err := d.primary.Send(ctx, []byte(dlqMsg.Body), dlqMsg.RedriveKey()); err != nil {
				return redriven, fmt.Errorf("redrive message %s: %w", dlqMsg.SourceMessageID, err)
			}

			if err := d.client.DeleteMessage(ctx, &sqsDeleteInput{
				QueueURL:      d.dlqURL,
				ReceiptHandle: sqsMsg.ReceiptHandle,
			}); err != nil {
				return redriven, fmt.Errorf("delete dlq message: %w", err)
			}

			d.log.Info().
				Str("task_id", dlqMsg.TaskID).
				Str("source_message_id", dlqMsg.SourceMessageID).
				Msg("dlq message redriven")
			redriven++
		}
	}
	return redriven, nil
}
