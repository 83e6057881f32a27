package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenBucketBurstThenRefill(t *testing.T) {
	clock := newFakeClock()
	tb := newTokenBucket(10, 5, clock.Now)

	for i := 0; i < 10; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d should be allowed (burst)", i)
		}
	}
	if tb.Allow() {
		t.Fatal("11th request should be denied")
	}
	if got := tb.WaitTime(); got != 200*time.Millisecond {
		t.Fatalf("expected 200ms wait, got %v", got)
	}

	clock.Advance(time.Second)
	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d after refill should be allowed", i)
		}
	}
	if tb.Allow() {
		t.Fatal("bucket should be empty again")
	}
}

func TestTokenBucketNeverExceedsCapacity(t *testing.T) {
	clock := newFakeClock()
	tb := newTokenBucket(3, 100, clock.Now)
	tb.Allow()
	clock.Advance(time.Hour)
	if got := tb.Remaining(); got != 3 {
		t.Fatalf("expected capacity 3, got %v", got)
	}
	if !tb.Full() || tb.WaitTime() != 0 {
		t.Fatal("full bucket should need no wait")
	}
}

func TestTokenBucketConcurrent(t *testing.T) {
	tb := newTokenBucket(100, 0, newFakeClock().Now)
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if tb.Allow() {
					allowed.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	if allowed.Load() != 100 {
		t.Fatalf("expected exactly 100 allowed, got %d", allowed.Load())
	}
}
