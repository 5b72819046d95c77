package mem

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalLockerSerializes(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "request:1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
}

func TestLocalLockerTimeout(t *testing.T) {
	locker := NewLocalLocker(time.Minute)
	unlock, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "k"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	// other keys are independent
	other, err := locker.Lock(context.Background(), "other")
	if err != nil {
		t.Fatalf("lock other: %v", err)
	}
	other()
}

func TestLocalLockerExpiredEntryIsReclaimed(t *testing.T) {
	locker := NewLocalLocker(10 * time.Millisecond)
	if _, err := locker.Lock(context.Background(), "k"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := locker.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("expected expired lock to be reclaimed: %v", err)
	}
	unlock()
	unlock()
}
