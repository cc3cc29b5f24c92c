package dispatch

import (
	"context"
	"sync"
	"time"

	"voice-outreach/pkg/logger"
	"voice-outreach/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Locker serialises dispatch per campaign across invocations.
// ok=false means another invocation holds the lock.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

func lockKey(campaignID string) string {
	return "outreach:dispatch:campaign:" + campaignID
}

// RedisLocker uses an expiring Redis lease so concurrent processes
// coordinate. TTL must outlast a full paced batch.
type RedisLocker struct {
	Client redis.UniversalClient
	TTL    time.Duration
}

func (l RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token, err := utils.AcquireLease(ctx, l.Client, key, l.TTL)
	if err != nil {
		return nil, false, err
	}
	if token == "" {
		return nil, false, nil
	}
	unlock := func() {
		// Release even when the batch context was cancelled.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if _, err := utils.ReleaseLease(relCtx, l.Client, key, token); err != nil {
			logger.From(ctx).Warn("dispatch lock release failed", "key", key, "err", err)
		}
	}
	return unlock, true, nil
}

// LocalLocker serialises dispatch within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]bool{}}
}

func (l *LocalLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
