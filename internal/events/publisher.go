package events

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisPublisher appends events to one capped stream per topic
type RedisPublisher struct {
	rdb    *redis.Client
	maxLen int64
}

func NewRedisPublisher(rdb *redis.Client, maxLen int64) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: StreamKey(event.Topic),
		Values: map[string]interface{}{"event": string(encoded)},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	return p.rdb.XAdd(ctx, args).Err()
}
