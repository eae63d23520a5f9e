package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"owl-location/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient 创建Redis客户端
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// streamAdder is the slice of the redis client the publisher needs.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamPublisher appends events to a Redis stream with XADD.
type RedisStreamPublisher struct {
	client streamAdder
	stream string
	maxLen int64
}

// DefaultStreamMaxLen caps the stream (approximate trimming).
const DefaultStreamMaxLen = 100000

func NewRedisStreamPublisher(client streamAdder, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: DefaultStreamMaxLen}
}

// Publish 发布事件到 Redis Streams
// Fields: type, id, data (event JSON), timestamp (unix seconds).
func (p *RedisStreamPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      string(e.Type),
			"id":        e.ID,
			"data":      string(data),
			"timestamp": fmt.Sprintf("%d", e.OccurredAt.Unix()),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}

func (p *RedisStreamPublisher) Close() error {
	if c, ok := p.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
