package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockRegistry_SerializesSameName(t *testing.T) {
	r := newLockRegistry()
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			release := r.acquire("web")
			defer release()
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, order, 3)
}

func TestLockRegistry_DifferentNamesDoNotBlock(t *testing.T) {
	r := newLockRegistry()
	releaseA := r.acquire("a")
	done := make(chan struct{})
	go func() {
		release := r.acquire("b")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("acquiring a different name should not block")
	}
	releaseA()
}

func TestLockRegistry_SweepReclaimsIdleLocks(t *testing.T) {
	r := newLockRegistry()
	release := r.acquire("web")
	release()

	r.sweep(0)

	r.mu.Lock()
	_, exists := r.locks["web"]
	r.mu.Unlock()
	assert.False(t, exists)
}

func TestLockRegistry_SweepLeavesHeldLocks(t *testing.T) {
	r := newLockRegistry()
	release := r.acquire("web")

	r.sweep(0)

	r.mu.Lock()
	_, exists := r.locks["web"]
	r.mu.Unlock()
	assert.True(t, exists)
	release()
}
