package operations

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocksSerializeSameKey(t *testing.T) {
	t.Parallel()
	k := newKeyedLocks()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			unlock := k.Lock("OP-2026-0001")
			defer unlock()
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, k.size(), "idle keys are dropped")
}

func TestKeyedLocksDifferentKeysDoNotBlock(t *testing.T) {
	t.Parallel()
	k := newKeyedLocks()

	unlockA := k.Lock("OP-2026-0001")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("OP-2026-0002")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyedLocksReaderWaitsForWriter(t *testing.T) {
	t.Parallel()
	k := newKeyedLocks()

	unlock := k.Lock("OP-2026-0001")
	acquired := make(chan struct{})
	go func() {
		runlock := k.RLock("OP-2026-0001")
		close(acquired)
		runlock()
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired while writer held the lock")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
}
