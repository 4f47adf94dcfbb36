package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"predmaint/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	defaultLockKey      = "predmaint:maintenance-lock"
	lockTTL             = 30 * time.Second // lock expiry, so a crashed holder cannot deadlock the job
	lockAcquireTimeout  = 5 * time.Second
	lockExtendInterval  = 10 * time.Second
	maxLockHoldDuration = 2 * time.Minute
)

// DistributedLock serializes a periodic job across replicas.
type DistributedLock interface {
	// TryLock attempts to acquire the lock without blocking on contention.
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases the lock if this instance holds it.
	Unlock(ctx context.Context) error

	// IsHeld reports whether this instance currently holds the lock.
	IsHeld() bool
}

// RedisDistributedLock implements DistributedLock on SET NX with a TTL and a
// background renewal goroutine. A nil redis client degrades to single-instance
// mode where every TryLock succeeds locally.
type RedisDistributedLock struct {
	client       *redis.Client
	lockKey      string
	lockValue    string // unique per instance so one holder cannot release another's lock
	ttl          time.Duration
	isHeld       bool
	acquiredAt   time.Time
	stopRenew    chan struct{}
	renewStopped bool
	mu           sync.Mutex
}

// NewRedisDistributedLock creates a lock on lockKey. Distinct jobs use
// distinct keys; an empty key falls back to the shared maintenance lock.
func NewRedisDistributedLock(client *redis.Client, lockKey string) *RedisDistributedLock {
	if lockKey == "" {
		lockKey = defaultLockKey
	}
	return &RedisDistributedLock{
		client:    client,
		lockKey:   lockKey,
		lockValue: uuid.New().String(),
		ttl:       lockTTL,
		isHeld:    false,
		stopRenew: make(chan struct{}),
	}
}

// TryLock attempts to acquire the lock, waiting at most the acquire timeout.
func (l *RedisDistributedLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		logger.Warn("redis client is nil, skipping distributed lock (running in single-instance mode)")
		l.mu.Lock()
		l.isHeld = true
		l.mu.Unlock()
		return true, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
	defer cancel()

	acquired, err := l.client.SetNX(acquireCtx, l.lockKey, l.lockValue, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if acquired {
		l.mu.Lock()
		l.isHeld = true
		l.acquiredAt = time.Now()
		// Fresh channel per acquisition so TryLock/Unlock cycles can repeat.
		l.stopRenew = make(chan struct{})
		l.renewStopped = false
		l.mu.Unlock()

		go l.renewLock(ctx)

		logger.DebugCtx(ctx, "lock %s acquired", l.lockKey)
		return true, nil
	}

	logger.DebugCtx(ctx, "lock %s already held by another instance", l.lockKey)
	return false, nil
}

// Unlock releases the lock if held. Safe to call when the lock was never
// acquired or was lost to expiry.
func (l *RedisDistributedLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if !l.isHeld {
		l.mu.Unlock()
		return nil
	}

	if l.client == nil {
		l.isHeld = false
		l.mu.Unlock()
		return nil
	}

	// Stop the renewal goroutine exactly once.
	if !l.renewStopped {
		l.renewStopped = true
		close(l.stopRenew)
	}
	l.mu.Unlock()

	// Delete only our own value, never a competitor's freshly acquired lock.
	luaScript := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`

	result, err := l.client.Eval(ctx, luaScript, []string{l.lockKey}, l.lockValue).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	l.mu.Lock()
	l.isHeld = false
	l.mu.Unlock()

	if result.(int64) == 1 {
		logger.DebugCtx(ctx, "lock %s released", l.lockKey)
	} else {
		logger.WarnCtx(ctx, "lock %s was already released or held by another instance", l.lockKey)
	}

	return nil
}

// IsHeld reports whether this instance currently holds the lock.
func (l *RedisDistributedLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isHeld
}

// renewLock extends the TTL while the job runs, and gives the lock up after
// maxLockHoldDuration so a wedged job cannot starve other replicas forever.
func (l *RedisDistributedLock) renewLock(ctx context.Context) {
	ticker := time.NewTicker(lockExtendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopRenew:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			holdDuration := time.Since(l.acquiredAt)
			l.mu.Unlock()

			if holdDuration > maxLockHoldDuration {
				logger.WarnCtx(ctx, "lock %s held for %.0f seconds, letting it expire",
					l.lockKey, holdDuration.Seconds())
				// Mark unheld and stop renewing; the owning goroutine's Unlock
				// remains the only place that closes stopRenew.
				l.mu.Lock()
				l.isHeld = false
				l.mu.Unlock()
				return
			}

			// Extend only our own value.
			luaScript := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("expire", KEYS[1], ARGV[2])
				else
					return 0
				end
			`

			result, err := l.client.Eval(ctx, luaScript,
				[]string{l.lockKey},
				l.lockValue,
				int(l.ttl.Seconds())).Result()

			if err != nil {
				logger.WarnCtx(ctx, "failed to renew lock %s: %v", l.lockKey, err)
				l.mu.Lock()
				l.isHeld = false
				l.mu.Unlock()
				return
			}

			if result.(int64) == 0 {
				logger.WarnCtx(ctx, "lock %s renewal failed, lock lost", l.lockKey)
				l.mu.Lock()
				l.isHeld = false
				l.mu.Unlock()
				return
			}

			logger.DebugCtx(ctx, "lock %s renewed", l.lockKey)
		}
	}
}
