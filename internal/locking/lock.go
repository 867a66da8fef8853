// Package locking provides a Redis-based lock that keeps two pipeline runs
// for the same user from executing concurrently across service instances.
package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when the caller still owns it.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ErrNotAcquired is returned when the lock is already held elsewhere.
var ErrNotAcquired = fmt.Errorf("lock not acquired")

// Locker acquires per-key run locks in Redis.
type Locker struct {
	client *redis.Client
}

// Lock is an acquired lock. Release it when the run finishes.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// TryLock attempts a non-blocking acquisition with the given TTL. The TTL is
// a liveness backstop: a crashed run releases its lock when it expires.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if l.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, ErrNotAcquired
	}

	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release frees the lock if this holder still owns it.
func (lk *Lock) Release(ctx context.Context) error {
	released, err := lk.client.Eval(ctx, releaseScript, []string{lk.key}, lk.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lk.key, err)
	}
	if released == 0 {
		return fmt.Errorf("lock %s no longer held by this owner", lk.key)
	}
	return nil
}

// UserRunKey names the lock guarding one user's pipeline run.
func UserRunKey(userID string) string {
	return "folio:pipeline:run:" + userID
}
