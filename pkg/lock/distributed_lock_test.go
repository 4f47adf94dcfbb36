package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDistributedLockAcquireAndRelease(t *testing.T) {
	client := newTestClient(t)

	l := NewRedisDistributedLock(client, "test-lock")
	ctx := context.Background()

	acquired, err := l.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, l.IsHeld())

	err = l.Unlock(ctx)
	assert.NoError(t, err)
	assert.False(t, l.IsHeld())
}

func TestDistributedLockExcludesSecondHolder(t *testing.T) {
	client := newTestClient(t)

	lock1 := NewRedisDistributedLock(client, "test-lock-multi")
	lock2 := NewRedisDistributedLock(client, "test-lock-multi")
	ctx := context.Background()

	acquired1, err := lock1.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired1)

	acquired2, err := lock2.TryLock(ctx)
	assert.NoError(t, err)
	assert.False(t, acquired2, "second holder must not acquire a held lock")

	err = lock1.Unlock(ctx)
	assert.NoError(t, err)

	acquired2, err = lock2.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired2, "lock must be acquirable after release")

	assert.NoError(t, lock2.Unlock(ctx))
}

func TestDistributedLockExpires(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	defer client.Close()

	lock1 := NewRedisDistributedLock(client, "test-lock-expire")
	lock2 := NewRedisDistributedLock(client, "test-lock-expire")
	ctx := context.Background()

	acquired1, err := lock1.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired1)

	// Simulate the holder crashing: TTL runs out without an Unlock.
	mr.FastForward(lockTTL + time.Second)

	acquired2, err := lock2.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired2, "lock must be available after TTL expiry")

	assert.NoError(t, lock2.Unlock(ctx))
}

func TestDistributedLockNilClientSingleInstanceMode(t *testing.T) {
	l := NewRedisDistributedLock(nil, "test-lock-nil")
	ctx := context.Background()

	acquired, err := l.TryLock(ctx)
	assert.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, l.IsHeld())

	assert.NoError(t, l.Unlock(ctx))
	assert.False(t, l.IsHeld())
}

func TestDistributedLockExactlyOneWinner(t *testing.T) {
	client := newTestClient(t)

	lock1 := NewRedisDistributedLock(client, "test-lock-race")
	lock2 := NewRedisDistributedLock(client, "test-lock-race")
	ctx := context.Background()

	acquired1, err1 := lock1.TryLock(ctx)
	acquired2, err2 := lock2.TryLock(ctx)

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.True(t, acquired1 != acquired2, "exactly one holder must win")

	if acquired1 {
		lock1.Unlock(ctx)
	}
	if acquired2 {
		lock2.Unlock(ctx)
	}
}

func TestDistributedLockUnlockWithoutHoldIsNoop(t *testing.T) {
	client := newTestClient(t)

	l := NewRedisDistributedLock(client, "test-lock-noop")
	assert.NoError(t, l.Unlock(context.Background()))
	assert.False(t, l.IsHeld())
}

func TestDistributedLockReacquireAfterRelease(t *testing.T) {
	client := newTestClient(t)

	l := NewRedisDistributedLock(client, "test-lock-cycle")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		acquired, err := l.TryLock(ctx)
		assert.NoError(t, err)
		assert.True(t, acquired, "cycle %d", i)
		assert.NoError(t, l.Unlock(ctx))
	}
}
