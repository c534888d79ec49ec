package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handler processes one event. Errors are logged; the event is acknowledged
// either way.
type Handler func(ctx context.Context, event Event) error

// Typed decodes the payload into T before calling fn
func Typed[T any](fn func(ctx context.Context, payload T) error) Handler {
	return func(ctx context.Context, event Event) error {
		var payload T
		if err := event.Decode(&payload); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", event.Topic, err)
		}
		return fn(ctx, payload)
	}
}

// Consumer reads topic streams as a member of a consumer group
type Consumer struct {
	rdb      *redis.Client
	group    string
	name     string
	block    time.Duration
	topics   []string
	handlers map[string]Handler
}

// NewConsumer returns a consumer. A negative block makes each poll return
// immediately when no event is pending.
func NewConsumer(rdb *redis.Client, group, name string, block time.Duration) *Consumer {
	return &Consumer{
		rdb:      rdb,
		group:    group,
		name:     name,
		block:    block,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for topic. Must be called before Run.
func (c *Consumer) Handle(topic string, h Handler) {
	if _, ok := c.handlers[topic]; !ok {
		c.topics = append(c.topics, topic)
	}
	c.handlers[topic] = h
}

// Run polls until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroups(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "event consumer started", "group", c.group, "consumer", c.name, "topics", c.topics)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.ErrorContext(ctx, "event poll failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Poll reads one batch, dispatches it and returns the number of events handled.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	if len(c.topics) == 0 {
		return 0, nil
	}

	streams := make([]string, 0, 2*len(c.topics))
	for _, topic := range c.topics {
		streams = append(streams, StreamKey(topic))
	}
	for range c.topics {
		streams = append(streams, ">")
	}

	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  streams,
		Count:    32,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, stream := range res {
		for _, msg := range stream.Messages {
			c.dispatch(ctx, stream.Stream, msg)
			handled++
		}
	}

	return handled, nil
}

func (c *Consumer) dispatch(ctx context.Context, stream string, msg redis.XMessage) {
	defer func() {
		if err := c.rdb.XAck(ctx, stream, c.group, msg.ID).Err(); err != nil {
			slog.WarnContext(ctx, "failed to ack event", "stream", stream, "message_id", msg.ID, "error", err)
		}
	}()

	raw, _ := msg.Values["event"].(string)
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		slog.ErrorContext(ctx, "malformed event", "stream", stream, "message_id", msg.ID, "error", err)
		return
	}

	handler, ok := c.handlers[event.Topic]
	if !ok {
		return
	}

	eventCtx := event.Context(ctx)
	if err := handler(eventCtx, event); err != nil {
		slog.ErrorContext(eventCtx, "event handler failed",
			"topic", event.Topic,
			"event_id", event.ID,
			"error", err,
		)
	}
}

// EnsureGroups creates the consumer groups so that events published from now
// on are delivered to this consumer.
func (c *Consumer) EnsureGroups(ctx context.Context) error {
	for _, topic := range c.topics {
		err := c.rdb.XGroupCreateMkStream(ctx, StreamKey(topic), c.group, "$").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return err
		}
	}
	return nil
}
