package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StreamAdder is the part of *redis.Client the Redis listener needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisListener appends each event to a capped Redis stream.
type RedisListener struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewRedisListener creates a RedisListener. maxLen caps the stream
// approximately; zero leaves it unbounded.
func NewRedisListener(client StreamAdder, stream string, maxLen int64) *RedisListener {
	return &RedisListener{client: client, stream: stream, maxLen: maxLen}
}

func (r *RedisListener) Name() string { return "redis" }

// Handle adds e to the stream.
func (r *RedisListener) Handle(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"id":        e.ID,
			"kind":      string(e.Kind),
			"namespace": e.Metadata.Namespace,
			"operation": string(e.Operation),
			"event":     string(payload),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd audit event: %w", err)
	}
	return nil
}
