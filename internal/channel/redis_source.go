package channel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix is the pub/sub channel prefix the render backend publishes to
const DefaultChannelPrefix = "job_progress:"

// RedisSource subscribes to <prefix><jobID> on Redis pub/sub.
type RedisSource struct {
	redis  *redis.Client
	prefix string
}

func NewRedisSource(redisClient *redis.Client, prefix string) *RedisSource {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisSource{redis: redisClient, prefix: prefix}
}

func (s *RedisSource) Connect(ctx context.Context, jobID string) (Stream, error) {
	channel := s.prefix + jobID
	pubsub := s.redis.Subscribe(ctx, channel)

	// Wait for the subscription confirmation so no event published after
	// Connect returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return &redisStream{pubsub: pubsub}, nil
}

type redisStream struct {
	pubsub *redis.PubSub
	closed atomic.Bool
}

func (s *redisStream) Next(ctx context.Context) ([]byte, error) {
	for {
		msg, err := s.pubsub.Receive(ctx)
		if err != nil {
			if s.closed.Load() || errors.Is(err, redis.ErrClosed) {
				return nil, ErrStreamClosed
			}
			return nil, err
		}
		switch m := msg.(type) {
		case *redis.Message:
			return []byte(m.Payload), nil
		case *redis.Pong, *redis.Subscription:
			continue
		}
	}
}

func (s *redisStream) Heartbeat(ctx context.Context) error {
	return s.pubsub.Ping(ctx)
}

func (s *redisStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.pubsub.Close()
}
