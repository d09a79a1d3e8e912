package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownReceipt is returned when acking or releasing a delivery that is
// no longer held, for example after its visibility timeout expired and the
// message was handed out again.
var ErrUnknownReceipt = errors.New("queue: unknown or expired receipt")

// MemoryQueue is an in-process ordered, deduplicating channel with a single
// lane. It implements Provider and Consumer. While any message is in flight
// or waiting out a release delay, no later message is delivered.
type MemoryQueue struct {
	mu         sync.Mutex
	window     time.Duration
	visibility time.Duration
	wait       time.Duration
	now        func() time.Time
	seq        int64
	messages   []*memoryMessage
	dedup      map[string]dedupEntry
	notify     chan struct{}
}

type memoryMessage struct {
	id        string
	body      []byte
	receives  int
	receipt   string
	visibleAt time.Time
}

type dedupEntry struct {
	receipt Receipt
	expires time.Time
}

// MemoryOption configures a MemoryQueue.
type MemoryOption func(*MemoryQueue)

// WithDedupWindow sets how long a dedup key suppresses later sends.
func WithDedupWindow(d time.Duration) MemoryOption {
	return func(q *MemoryQueue) { q.window = d }
}

// WithVisibilityTimeout sets how long a received message stays hidden before
// it is handed out again without an ack.
func WithVisibilityTimeout(d time.Duration) MemoryOption {
	return func(q *MemoryQueue) { q.visibility = d }
}

// WithWaitTime sets how long Receive blocks when nothing is deliverable.
func WithWaitTime(d time.Duration) MemoryOption {
	return func(q *MemoryQueue) { q.wait = d }
}

// WithClock replaces the clock used for dedup and visibility.
func WithClock(now func() time.Time) MemoryOption {
	return func(q *MemoryQueue) { q.now = now }
}

// NewMemoryQueue creates an empty MemoryQueue. Defaults match SQS FIFO: a five
// minute dedup window and a 180 second visibility timeout.
func NewMemoryQueue(opts ...MemoryOption) *MemoryQueue {
	q := &MemoryQueue{
		window:     5 * time.Minute,
		visibility: 180 * time.Second,
		wait:       100 * time.Millisecond,
		now:        time.Now,
		dedup:      make(map[string]dedupEntry),
		notify:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Name returns the provider name.
func (q *MemoryQueue) Name() string { return "memory" }

// Send appends the payload to the lane unless dedupKey was seen within the
// dedup window, in which case the earlier receipt is returned.
func (q *MemoryQueue) Send(ctx context.Context, payload []byte, dedupKey string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, &SendError{Provider: q.Name(), Attempts: 1, Err: err}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.pruneDedupLocked(now)

	if entry, ok := q.dedup[dedupKey]; ok {
		MessagesDeduplicatedTotal.WithLabelValues(q.Name()).Inc()
		return entry.receipt, nil
	}

	q.seq++
	msg := &memoryMessage{
		id:   fmt.Sprintf("mem-%d", q.seq),
		body: append([]byte(nil), payload...),
	}
	q.messages = append(q.messages, msg)

	receipt := Receipt{
		Provider:       q.Name(),
		MessageID:      msg.id,
		SequenceNumber: fmt.Sprintf("%020d", q.seq),
	}
	q.dedup[dedupKey] = dedupEntry{receipt: receipt, expires: now.Add(q.window)}

	MessagesEnqueuedTotal.WithLabelValues(q.Name()).Inc()
	q.signal()

	return receipt, nil
}

// Receive returns up to max messages from the head of the lane, waiting up to
// the configured wait time when none are deliverable.
func (q *MemoryQueue) Receive(ctx context.Context, max int) ([]Delivery, error) {
	if max < 1 {
		max = 1
	}

	timer := time.NewTimer(q.wait)
	defer timer.Stop()

	for {
		if out := q.take(max); len(out) > 0 {
			return out, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) take(max int) []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, m := range q.messages {
		if now.Before(m.visibleAt) {
			// Lane is locked by an in-flight or delayed message.
			return nil
		}
	}

	n := min(max, len(q.messages))
	out := make([]Delivery, 0, n)
	for _, m := range q.messages[:n] {
		m.receives++
		m.receipt = uuid.NewString()
		m.visibleAt = now.Add(q.visibility)
		out = append(out, Delivery{
			MessageID:    m.id,
			Receipt:      m.receipt,
			Body:         append([]byte(nil), m.body...),
			ReceiveCount: m.receives,
		})
	}
	return out
}

// Ack removes the deliveries from the lane.
func (q *MemoryQueue) Ack(_ context.Context, deliveries []Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var errs []error
	for _, d := range deliveries {
		idx := q.indexLocked(d)
		if idx < 0 {
			errs = append(errs, fmt.Errorf("ack %s: %w", d.MessageID, ErrUnknownReceipt))
			continue
		}
		q.messages = append(q.messages[:idx], q.messages[idx+1:]...)
	}
	q.signal()
	return errors.Join(errs...)
}

// Release makes the deliveries deliverable again once delay has passed.
func (q *MemoryQueue) Release(_ context.Context, deliveries []Delivery, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var errs []error
	for _, d := range deliveries {
		idx := q.indexLocked(d)
		if idx < 0 {
			errs = append(errs, fmt.Errorf("release %s: %w", d.MessageID, ErrUnknownReceipt))
			continue
		}
		m := q.messages[idx]
		m.receipt = ""
		m.visibleAt = now.Add(delay)
	}
	q.signal()
	return errors.Join(errs...)
}

// Len returns the number of messages not yet acked.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

func (q *MemoryQueue) indexLocked(d Delivery) int {
	for i, m := range q.messages {
		if m.id == d.MessageID && m.receipt != "" && m.receipt == d.Receipt {
			return i
		}
	}
	return -1
}

func (q *MemoryQueue) pruneDedupLocked(now time.Time) {
	for key, entry := range q.dedup {
		if !now.Before(entry.expires) {
			delete(q.dedup, key)
		}
	}
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// MemoryDLQ keeps dead-lettered messages in memory.
type MemoryDLQ struct {
	mu       sync.Mutex
	primary  Provider
	messages []DLQMessage
}

// NewMemoryDLQ creates a MemoryDLQ that redrives into primary.
func NewMemoryDLQ(primary Provider) *MemoryDLQ {
	return &MemoryDLQ{primary: primary}
}

// MoveToDLQ records the failed delivery.
func (d *MemoryDLQ) MoveToDLQ(_ context.Context, del Delivery, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, NewDLQMessage(del, reason))
	DLQMessagesTotal.WithLabelValues(reason).Inc()
	return nil
}

// Redrive sends up to max messages back to the primary provider in order.
func (d *MemoryDLQ) Redrive(ctx context.Context, max int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	redriven := 0
	for redriven < max && len(d.messages) > 0 {
		m := d.messages[0]
		if _, err := d.primary.Send(ctx, []byte(m.Body), m.RedriveKey()); err != nil {
			return redriven, fmt.Errorf("redrive message %s: %w", m.SourceMessageID, err)
		}
		d.messages = d.messages[1:]
		redriven++
	}
	return redriven, nil
}

// Messages returns a copy of the dead-lettered messages.
func (d *MemoryDLQ) Messages() []DLQMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DLQMessage, len(d.messages))
	copy(out, d.messages)
	return out
}
