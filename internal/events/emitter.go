package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segyhp/jaryq-library/internal/clock"
)

const publishTimeout = 5 * time.Second

var ErrEmitterClosed = errors.New("emitter closed")

// Emitter publishes events from a background worker. Emit never blocks the
// caller and never reports a publish failure to it.
type Emitter struct {
	pub   Publisher
	clock clock.Clock
	queue chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewEmitter(pub Publisher, bufferSize int, clk clock.Clock) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Emitter{
		pub:   pub,
		clock: clk,
		queue: make(chan Event, bufferSize),
		done:  make(chan struct{}),
	}
}

// Start launches the publishing worker
func (e *Emitter) Start() {
	go e.run()
}

// Emit queues payload for topic. The event is dropped with a warning when
// the queue is full or the emitter is closed.
func (e *Emitter) Emit(ctx context.Context, topic string, payload interface{}) {
	event, err := NewEvent(ctx, topic, payload, e.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode event", "topic", topic, "error", err)
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		slog.WarnContext(ctx, "event dropped", "topic", topic, "event_id", event.ID, "error", ErrEmitterClosed)
		return
	}

	select {
	case e.queue <- event:
	default:
		slog.WarnContext(ctx, "event dropped, queue full", "topic", topic, "event_id", event.ID)
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emitter) run() {
	defer close(e.done)

	for event := range e.queue {
		ctx, cancel := context.WithTimeout(event.Context(context.Background()), publishTimeout)
		if err := e.pub.Publish(ctx, event); err != nil {
			slog.WarnContext(ctx, "failed to publish event",
				"topic", event.Topic,
				"event_id", event.ID,
				"error", err,
			)
		} else {
			slog.DebugContext(ctx, "event published", "topic", event.Topic, "event_id", event.ID)
		}
		cancel()
	}
}
