// Package runlock keeps two orchestration runs for the same caller from
// overlapping, so the same experts are never booked twice in parallel.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another run already holds the lock.
var ErrHeld = errors.New("runlock: lock held by another run")

const keyPrefix = "callbooker:runlock:"

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-acquired by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReleaseFunc gives the lock back.
type ReleaseFunc = func(ctx context.Context) error

// RedisLocker is a SET NX PX lock shared by every API replica.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker; ttl bounds how long a crashed run can block others.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire takes the lock for key or returns ErrHeld.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("runlock: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			return fmt.Errorf("runlock: release %s: %w", key, err)
		}
		return nil
	}, nil
}

// MemoryLocker is the single-process fallback used when Redis is not configured.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]string
}

// NewMemoryLocker returns an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]string)}
}

// Acquire takes the lock for key or returns ErrHeld.
func (l *MemoryLocker) Acquire(_ context.Context, key string) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	l.held[key] = token
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}
