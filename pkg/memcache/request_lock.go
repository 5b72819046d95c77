// Package mem serializes payment operations per certificate request.
package mem

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// context deadline.
var ErrLockTimeout = errors.New("request lock: timed out waiting for lock")

const (
	DefaultLockTTL  = 30 * time.Second
	lockRetryPeriod = 25 * time.Millisecond
)

type RequestLocker interface {
	// Lock blocks until the lock for key is held or ctx is done. The returned
	// func releases it; calling it more than once is harmless.
	Lock(ctx context.Context, key string) (func(), error)
}

type entry struct {
	token     string
	expiresAt time.Time
}

// LocalLocker is an in-process lock table. Entries expire after ttl so a
// crashed holder cannot wedge a request forever.
type LocalLocker struct {
	mu   sync.Mutex
	data map[string]entry
	ttl  time.Duration
}

func NewLocalLocker(ttl time.Duration) *LocalLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &LocalLocker{
		data: make(map[string]entry),
		ttl:  ttl,
	}
}

func (l *LocalLocker) tryAcquire(key, token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.data[key]
	if ok && time.Now().Before(e.expiresAt) {
		return false
	}
	l.data[key] = entry{token: token, expiresAt: time.Now().Add(l.ttl)}
	return true
}

func (l *LocalLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.data[key]; ok && e.token == token {
		delete(l.data, key)
	}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	return acquire(ctx, func() (bool, error) {
		return l.tryAcquire(key, token), nil
	}, func() {
		l.release(key, token)
	})
}

// acquire polls try until it succeeds or ctx ends.
func acquire(ctx context.Context, try func() (bool, error), release func()) (func(), error) {
	ticker := time.NewTicker(lockRetryPeriod)
	defer ticker.Stop()

	for {
		ok, err := try()
		if err != nil {
			return nil, err
		}
		if ok {
			var once sync.Once
			return func() { once.Do(release) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
