package service

import (
	"context"
	"strconv"
	"time"

	"nexus-chat/pkg/cache"
	"nexus-chat/shared/redis"
)

const attemptKeyPrefix = "password-reset:failures:"

// RedisAttemptLimiter shares failure counts across function instances.
type RedisAttemptLimiter struct {
	client *redis.RedisClient
	window time.Duration
}

func NewRedisAttemptLimiter(client *redis.RedisClient, window time.Duration) *RedisAttemptLimiter {
	return &RedisAttemptLimiter{client: client, window: window}
}

func (l *RedisAttemptLimiter) Failures(ctx context.Context, userID string) (int, error) {
	v, err := l.client.Get(ctx, attemptKeyPrefix+userID)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (l *RedisAttemptLimiter) RecordFailure(ctx context.Context, userID string) (int, error) {
	n, err := l.client.IncrWindow(ctx, attemptKeyPrefix+userID, l.window)
	return int(n), err
}

func (l *RedisAttemptLimiter) Clear(ctx context.Context, userID string) error {
	return l.client.Del(ctx, attemptKeyPrefix+userID)
}

// MemoryAttemptLimiter keeps counts in process, for single-instance runs.
type MemoryAttemptLimiter struct {
	cache  *cache.Cache
	window time.Duration
}

func NewMemoryAttemptLimiter(c *cache.Cache, window time.Duration) *MemoryAttemptLimiter {
	return &MemoryAttemptLimiter{cache: c, window: window}
}

func (l *MemoryAttemptLimiter) Failures(_ context.Context, userID string) (int, error) {
	v, ok := l.cache.Get(attemptKeyPrefix + userID)
	if !ok {
		return 0, nil
	}
	n, _ := v.(int)
	return n, nil
}

func (l *MemoryAttemptLimiter) RecordFailure(_ context.Context, userID string) (int, error) {
	return l.cache.Increment(attemptKeyPrefix+userID, l.window), nil
}

func (l *MemoryAttemptLimiter) Clear(_ context.Context, userID string) error {
	l.cache.Delete(attemptKeyPrefix + userID)
	return nil
}
