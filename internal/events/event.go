// Package events carries domain events between services over Redis streams.
// Delivery is at-most-once and producers never wait on consumers.
package events

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/oklog/ulid/v2"

	"github.com/segyhp/jaryq-library/internal/correlation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const streamPrefix = "jaryqlibrary.events."

// Event is the envelope written to a topic stream
type Event struct {
	ID            string              `json:"id"`
	Topic         string              `json:"topic"`
	CorrelationID string              `json:"correlationId,omitempty"`
	OccurredAt    time.Time           `json:"occurredAt"`
	Payload       jsoniter.RawMessage `json:"payload"`
}

// NewEvent wraps payload for topic, stamping the correlation id of ctx.
func NewEvent(ctx context.Context, topic string, payload interface{}, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:            ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Topic:         topic,
		CorrelationID: correlation.FromContext(ctx),
		OccurredAt:    now,
		Payload:       raw,
	}, nil
}

// Decode unmarshals the payload into v
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Context returns ctx carrying the event's correlation id
func (e Event) Context(ctx context.Context) context.Context {
	if e.CorrelationID == "" {
		return ctx
	}
	return correlation.WithID(ctx, e.CorrelationID)
}

// StreamKey is the Redis stream a topic is written to
func StreamKey(topic string) string {
	return streamPrefix + topic
}
