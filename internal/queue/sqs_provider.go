package queue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// SQSProvider sends messages to an AWS SQS FIFO queue. Every message goes to
// GroupKey, with the caller's dedup key as MessageDeduplicationId.
type SQSProvider struct {
	client   sqsAPI
	queueURL string
	retry    *RetryPolicy
	log      zerolog.Logger
}

// NewSQSProvider creates an SQSProvider targeting the given queue URL. An
// empty URL is a configuration error.
func NewSQSProvider(client sqsAPI, queueURL string, retry *RetryPolicy, log zerolog.Logger) (*SQSProvider, error) {
	if queueURL == "" {
		return nil, ErrMissingQueueURL
	}
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	return &SQSProvider{
		client:   client,
		queueURL: queueURL,
		retry:    retry,
		log:      log.With().Str("provider", "sqs").Logger(),
	}, nil
}

// Name returns the provider name.
func (p *SQSProvider) Name() string { return "sqs" }

// Send hands the payload to SQS, retrying transient failures under the
// provider's RetryPolicy.
func (p *SQSProvider) Send(ctx context.Context, payload []byte, dedupKey string) (Receipt, error) {
	var out *sqsSendOutput
	attempts, err := p.retry.Do(ctx, func(ctx context.Context) error {
		o, err := p.client.SendMessage(ctx, &sqsSendInput{
			QueueURL:        p.queueURL,
			MessageBody:     string(payload),
			GroupID:         GroupKey,
			DeduplicationID: dedupKey,
		})
		if err != nil {
			p.log.Warn().Err(err).Str("dedup_key", dedupKey).Msg("sqs send attempt failed")
			return fmt.Errorf("sqs send message: %w", err)
		}
		if o.MessageID == "" {
			return ErrMissingMessageID
		}
		out = o
		return nil
	})
	if err != nil {
		SendFailuresTotal.WithLabelValues(p.Name()).Inc()
		return Receipt{}, &SendError{Provider: p.Name(), Attempts: attempts, Err: err}
	}

	MessagesEnqueuedTotal.WithLabelValues(p.Name()).Inc()

	return Receipt{
		Provider:       p.Name(),
		MessageID:      out.MessageID,
		SequenceNumber: out.SequenceNumber,
	}, nil
}
