package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// sendScript appends to the lane stream unless the dedup key is still alive,
// in which case it returns the entry id recorded for it.
var sendScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[2])
if existing then
	return {existing, 1}
end
local id = redis.call('XADD', KEYS[1], '*', 'data', ARGV[1], 'dedup', ARGV[3])
redis.call('SET', KEYS[2], id, 'PX', ARGV[2])
return {id, 0}
`)

// RedisQueue is a Redis Streams binding of the ordered, deduplicating
// channel. One stream per lane, one consumer group, and a single consumer
// name so that pending entries survive restarts and are re-read in order.
//
// The lane lock (in-flight entries and the release delay) is held in process
// memory, so exactly one worker process may consume a given stream.
type RedisQueue struct {
	client        *redis.Client
	stream        string
	consumerGroup string
	consumer      string
	window        time.Duration
	block         time.Duration
	retry         *RetryPolicy
	log           zerolog.Logger

	groupMu      sync.Mutex
	groupCreated bool

	mu        sync.Mutex
	receives  map[string]int
	inFlight  map[string]bool
	notBefore time.Time
}

// NewRedisQueue creates a RedisQueue on the given client.
func NewRedisQueue(client *redis.Client, cfg Config, log zerolog.Logger) *RedisQueue {
	window := cfg.DedupWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	block := time.Duration(cfg.WaitTime) * time.Second
	if block <= 0 {
		block = 5 * time.Second
	}

	retry := *cfg.RetryPolicy()
	retry.Classify = isRedisSendTransient

	return &RedisQueue{
		client:        client,
		stream:        streamKey(GroupKey),
		consumerGroup: "task-processors",
		consumer:      "task-processor",
		window:        window,
		block:         block,
		retry:         &retry,
		log:           log.With().Str("provider", "redis").Logger(),
		receives:      make(map[string]int),
		inFlight:      make(map[string]bool),
	}
}

// Name returns the provider name.
func (q *RedisQueue) Name() string { return "redis" }

// Send adds the payload to the lane stream. Duplicates within the dedup
// window return the receipt of the first entry.
func (q *RedisQueue) Send(ctx context.Context, payload []byte, dedupKey string) (Receipt, error) {
	var (
		id        string
		duplicate bool
	)
	attempts, err := q.retry.Do(ctx, func(ctx context.Context) error {
		res, err := sendScript.Run(ctx, q.client,
			[]string{q.stream, dedupRedisKey(GroupKey, dedupKey)},
			string(payload), q.window.Milliseconds(), dedupKey,
		).Slice()
		if err != nil {
			q.log.Warn().Err(err).Str("dedup_key", dedupKey).Msg("redis send attempt failed")
			return fmt.Errorf("redis send script: %w", err)
		}
		if len(res) != 2 {
			return fmt.Errorf("redis send script: unexpected reply %v", res)
		}
		id, _ = res[0].(string)
		if id == "" {
			return ErrMissingMessageID
		}
		flag, _ := res[1].(int64)
		duplicate = flag == 1
		return nil
	})
	if err != nil {
		SendFailuresTotal.WithLabelValues(q.Name()).Inc()
		return Receipt{}, &SendError{Provider: q.Name(), Attempts: attempts, Err: err}
	}

	if duplicate {
		MessagesDeduplicatedTotal.WithLabelValues(q.Name()).Inc()
	} else {
		MessagesEnqueuedTotal.WithLabelValues(q.Name()).Inc()
	}

	return Receipt{Provider: q.Name(), MessageID: id, SequenceNumber: id}, nil
}

// Receive returns up to max entries. Entries already delivered but not acked
// come first; new entries are read only when none are pending.
func (q *RedisQueue) Receive(ctx context.Context, max int) ([]Delivery, error) {
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}
	if max < 1 {
		max = 1
	}

	if wait := q.lockedFor(); wait > 0 {
		return nil, sleepCtx(ctx, min(wait, q.block))
	}

	pending, err := q.read(ctx, "0", max, -1)
	if err != nil {
		return nil, err
	}
	if out := q.deliver(ctx, pending); len(out) > 0 {
		return out, nil
	}

	fresh, err := q.read(ctx, ">", max, q.block)
	if err != nil {
		return nil, err
	}
	return q.deliver(ctx, fresh), nil
}

// Ack acknowledges and deletes the entries.
func (q *RedisQueue) Ack(ctx context.Context, deliveries []Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	ids := deliveryIDs(deliveries)

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, q.stream, q.consumerGroup, ids...)
		pipe.XDel(ctx, q.stream, ids...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("xack %s: %w", q.stream, err)
	}

	q.mu.Lock()
	for _, id := range ids {
		delete(q.receives, id)
		delete(q.inFlight, id)
	}
	q.mu.Unlock()
	return nil
}

// Release leaves the entries pending and holds back the lane until delay has
// passed; the next Receive re-reads them first.
func (q *RedisQueue) Release(_ context.Context, deliveries []Delivery, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, d := range deliveries {
		delete(q.inFlight, d.MessageID)
	}
	until := time.Now().Add(delay)
	if until.After(q.notBefore) {
		q.notBefore = until
	}
	return nil
}

// Close closes the underlying client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// ensureGroup creates the consumer group once. A failed attempt is retried
// on the next call.
func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	q.groupMu.Lock()
	defer q.groupMu.Unlock()
	if q.groupCreated {
		return nil
	}
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	q.groupCreated = true
	return nil
}

// lockedFor reports how long the lane stays closed to this consumer.
func (q *RedisQueue) lockedFor() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.inFlight) > 0 {
		return 50 * time.Millisecond
	}
	return time.Until(q.notBefore)
}

func (q *RedisQueue) read(ctx context.Context, id string, max int, block time.Duration) ([]redis.XMessage, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.consumerGroup,
		Consumer: q.consumer,
		Streams:  []string{q.stream, id},
		Count:    int64(max),
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", q.stream, err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

// deliver turns stream entries into deliveries. Entries trimmed or deleted
// after delivery come back with no fields; they are acked so they stop
// shadowing the rest of the stream.
func (q *RedisQueue) deliver(ctx context.Context, entries []redis.XMessage) []Delivery {
	var gone []string
	out := make([]Delivery, 0, len(entries))

	q.mu.Lock()
	for _, e := range entries {
		data, ok := e.Values["data"].(string)
		if !ok {
			gone = append(gone, e.ID)
			continue
		}
		q.receives[e.ID]++
		q.inFlight[e.ID] = true
		out = append(out, Delivery{
			MessageID:    e.ID,
			Receipt:      e.ID,
			Body:         []byte(data),
			ReceiveCount: q.receives[e.ID],
		})
	}
	q.mu.Unlock()

	if len(gone) > 0 {
		if err := q.client.XAck(ctx, q.stream, q.consumerGroup, gone...).Err(); err != nil {
			q.log.Warn().Err(err).Strs("message_ids", gone).Msg("failed to ack vanished entries")
		} else {
			q.log.Warn().Strs("message_ids", gone).Msg("acked pending entries that no longer exist")
		}
	}
	return out
}

func deliveryIDs(deliveries []Delivery) []string {
	ids := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		ids = append(ids, d.MessageID)
	}
	return ids
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isRedisSendTransient classifies errors from the send script.
func isRedisSendTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrMissingMessageID) || errors.Is(err, redis.ErrClosed) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return isRedisTransient(err)
}
