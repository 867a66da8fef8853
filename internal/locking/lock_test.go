package locking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), mr
}

func TestTryLockAndRelease(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	lock, err := locker.TryLock(ctx, "folio:pipeline:run:user-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("folio:pipeline:run:user-1"))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("folio:pipeline:run:user-1"))
}

func TestTryLockContention(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	first, err := locker.TryLock(ctx, "key", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "key", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, first.Release(ctx))

	second, err := locker.TryLock(ctx, "key", time.Minute)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestReleaseOnlyByOwner(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	lock, err := locker.TryLock(ctx, "key", time.Minute)
	require.NoError(t, err)

	// Simulate TTL expiry followed by another holder taking the lock.
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set("key", "other-token"))

	err = lock.Release(ctx)
	assert.Error(t, err, "a stale holder must not free another holder's lock")
	assert.True(t, mr.Exists("key"))
}

func TestTryLockExpires(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	_, err := locker.TryLock(ctx, "key", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	lock, err := locker.TryLock(ctx, "key", time.Second)
	require.NoError(t, err, "expired locks are acquirable again")
	require.NoError(t, lock.Release(ctx))
}

func TestUserRunKey(t *testing.T) {
	assert.Equal(t, "folio:pipeline:run:user-1", UserRunKey("user-1"))
}
