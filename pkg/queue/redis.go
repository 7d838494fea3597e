package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"StockPulse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueueOption configures the Redis backend.
type RedisQueueOption func(*redisBackend)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *redisBackend) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

// NewRedisQueue creates a queue whose messages, retries and statuses live
// in Redis, so several processes can share the work.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *Queue {
	b := &redisBackend{client: client, keyPrefix: "stockpulse:queue"}
	for _, opt := range opts {
		opt(b)
	}
	return newQueue(lgr, config, b)
}

type redisBackend struct {
	client    *redis.Client
	keyPrefix string
}

func (r *redisBackend) ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisBackend) push(ctx context.Context, data []byte) error {
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *redisBackend) pop(ctx context.Context, wait time.Duration) ([]byte, error) {
	result, err := r.client.BRPop(ctx, wait, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

func (r *redisBackend) schedule(ctx context.Context, data []byte, at time.Time) error {
	return r.client.ZAdd(ctx, r.retryKey(), redis.Z{
		Score:  float64(at.Unix()),
		Member: data,
	}).Err()
}

func (r *redisBackend) promote(ctx context.Context, now time.Time) error {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("fetch retry messages: %w", err)
	}

	for _, msgData := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// only the process that removed the member pushes it
		removed, err := r.client.ZRem(ctx, r.retryKey(), msgData).Result()
		if err != nil {
			return fmt.Errorf("zrem retry: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.queueKey(), msgData).Err(); err != nil {
			return fmt.Errorf("move retry to queue: %w", err)
		}
	}
	return nil
}

func (r *redisBackend) bury(ctx context.Context, data []byte) error {
	return r.client.LPush(ctx, r.deadLetterKey(), data).Err()
}

func (r *redisBackend) saveStatus(ctx context.Context, st *Status, ttl time.Duration) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.statusKey(st.ID), b, ttl).Err()
}

func (r *redisBackend) loadStatus(ctx context.Context, id string) (*Status, error) {
	b, err := r.client.Get(ctx, r.statusKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get status: %w", err)
	}
	var st Status
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

func (r *redisBackend) describe() string {
	return "redis " + r.client.Options().Addr
}

func (r *redisBackend) queueKey() string {
	return fmt.Sprintf("%s:messages", r.keyPrefix)
}

func (r *redisBackend) retryKey() string {
	return fmt.Sprintf("%s:retry", r.keyPrefix)
}

func (r *redisBackend) deadLetterKey() string {
	return fmt.Sprintf("%s:dlq", r.keyPrefix)
}

func (r *redisBackend) statusKey(id string) string {
	return fmt.Sprintf("%s:job:%s", r.keyPrefix, id)
}
