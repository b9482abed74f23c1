// Package bus streams dispatch outcomes through Redis Streams so other
// processes can follow what commands are doing.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/nuka-commands/internal/command"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OutcomeMessage is one finished dispatch as published on the stream.
type OutcomeMessage struct {
	ID         string            `json:"id"`
	StreamID   string            `json:"-"`
	Command    string            `json:"command"`
	Sender     string            `json:"sender"`
	Outcome    command.Outcome   `json:"outcome"`
	Args       map[string]string `json:"args,omitempty"`
	Flags      map[string]string `json:"flags,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Timestamp  time.Time         `json:"timestamp"`
}

const (
	defaultMaxLen   = 10000
	publishTimeout  = 2 * time.Second
	publishQueueLen = 256
)

// OutcomeBus publishes and reads outcome messages on a single stream.
type OutcomeBus struct {
	rdb    *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *OutcomeMessage
	done   chan struct{}
}

// New creates a bus from a redis:// URL and checks the connection.
func New(redisURL, stream string, logger *zap.Logger) (*OutcomeBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, stream, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, stream string, logger *zap.Logger) *OutcomeBus {
	b := &OutcomeBus{
		rdb:    rdb,
		stream: stream,
		maxLen: defaultMaxLen,
		logger: logger,
		queue:  make(chan *OutcomeMessage, publishQueueLen),
		done:   make(chan struct{}),
	}
	go b.loop()
	return b
}

// Stream returns the stream key.
func (b *OutcomeBus) Stream() string { return b.stream }

// Publish appends msg to the stream, trimming it to roughly maxLen entries.
func (b *OutcomeBus) Publish(ctx context.Context, msg *OutcomeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.stream, err)
	}
	msg.StreamID = id

	b.logger.Debug("published outcome",
		zap.String("dispatch_id", msg.ID),
		zap.String("command", msg.Command),
		zap.Stringer("outcome", msg.Outcome))
	return nil
}

// Subscribe emits messages added after lastID ("$" for only new ones, "0"
// for the whole stream). Cancel the context to stop; the channel is closed
// afterwards.
func (b *OutcomeBus) Subscribe(ctx context.Context, lastID string) <-chan *OutcomeMessage {
	ch := make(chan *OutcomeMessage, 16)
	if lastID == "" {
		lastID = "$"
	}

	go func() {
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{b.stream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					b.logger.Warn("read outcome stream failed", zap.Error(err))
					time.Sleep(500 * time.Millisecond)
				}
				continue
			}

			for _, r := range results {
				for _, raw := range r.Messages {
					lastID = raw.ID
					data, ok := raw.Values["data"].(string)
					if !ok {
						continue
					}
					var msg OutcomeMessage
					if json.Unmarshal([]byte(data), &msg) != nil {
						continue
					}
					msg.StreamID = raw.ID
					select {
					case ch <- &msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

func (b *OutcomeBus) loop() {
	defer close(b.done)
	for msg := range b.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := b.Publish(ctx, msg); err != nil {
			b.logger.Error("publish outcome failed", zap.String("dispatch_id", msg.ID), zap.Error(err))
		}
		cancel()
	}
}

// Listener returns a command.Listener that queues every finished dispatch
// for publishing.
func (b *OutcomeBus) Listener() command.Listener {
	return command.ListenerFuncs{PostProcess: b.enqueue}
}

func (b *OutcomeBus) enqueue(e *command.PostProcessEvent) {
	msg := MessageFromEvent(e)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- msg:
	default:
		b.logger.Warn("outcome queue full, dropping message", zap.String("dispatch_id", msg.ID))
	}
}

// Close flushes queued messages, bounded by ctx, and closes the Redis
// connection.
func (b *OutcomeBus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	var flushErr error
	select {
	case <-b.done:
	case <-ctx.Done():
		flushErr = ctx.Err()
	}
	return errors.Join(flushErr, b.rdb.Close())
}

// MessageFromEvent converts a post-process event into a stream message.
func MessageFromEvent(e *command.PostProcessEvent) *OutcomeMessage {
	msg := &OutcomeMessage{
		ID:         e.ID,
		Outcome:    e.Outcome,
		Args:       e.Args,
		Flags:      e.Flags,
		DurationMS: e.Finished.Sub(e.Started).Milliseconds(),
		Timestamp:  e.Finished,
	}
	if e.Command != nil {
		msg.Command = e.Command.Name()
	}
	if e.Sender != nil {
		msg.Sender = e.Sender.Name()
	}
	if e.Err != nil {
		msg.Error = e.Err.Error()
	}
	return msg
}
