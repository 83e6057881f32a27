package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultIdleAfter is how long a full bucket is kept before Sweep drops it.
const DefaultIdleAfter = 10 * time.Minute

// Config sizes the per-client buckets.
type Config struct {
	// Burst is the number of calls a client may make at once.
	Burst int
	// PerMinute is the sustained refill rate.
	PerMinute float64
	IdleAfter time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type entry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	burst     float64
	perSecond float64
	idleAfter time.Duration
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*entry
}

// NewLimiter returns nil when cfg.Burst is not positive, which disables limiting.
func NewLimiter(cfg Config) *Limiter {
	if cfg.Burst <= 0 {
		return nil
	}
	perMinute := cfg.PerMinute
	if perMinute <= 0 {
		perMinute = float64(cfg.Burst)
	}
	idle := cfg.IdleAfter
	if idle <= 0 {
		idle = DefaultIdleAfter
	}
	return &Limiter{
		burst:     float64(cfg.Burst),
		perSecond: perMinute / 60,
		idleAfter: idle,
		now:       time.Now,
		buckets:   make(map[string]*entry),
	}
}

// Allow consumes one token from key's bucket.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	e, ok := l.buckets[key]
	if !ok {
		e = &entry{bucket: newTokenBucket(l.burst, l.perSecond, l.now)}
		l.buckets[key] = e
	}
	e.lastSeen = l.now()
	l.mu.Unlock()

	d := Decision{Allowed: e.bucket.Allow(), Limit: int(l.burst)}
	d.Remaining = int(math.Floor(e.bucket.Remaining()))
	if !d.Allowed {
		d.RetryAfter = e.bucket.WaitTime()
	}
	return d
}

// Sweep drops buckets that are full and unused for IdleAfter. It returns the
// number dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleAfter)
	dropped := 0
	for key, e := range l.buckets {
		if e.lastSeen.Before(cutoff) && e.bucket.Full() {
			delete(l.buckets, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.idleAfter / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
