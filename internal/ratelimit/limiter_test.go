package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(burst int, perMinute float64, clock *fakeClock) *Limiter {
	l := NewLimiter(Config{Burst: burst, PerMinute: perMinute, IdleAfter: time.Minute})
	l.now = clock.Now
	return l
}

func TestNewLimiterDisabled(t *testing.T) {
	if NewLimiter(Config{}) != nil {
		t.Fatal("zero burst should disable the limiter")
	}
	var m *Middleware
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if got := m.Wrap(h); got == nil {
		t.Fatal("nil middleware should pass the handler through")
	}
}

func TestLimiterIsPerClient(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(2, 60, clock)

	for i := 0; i < 2; i++ {
		if d := l.Allow("10.0.0.1"); !d.Allowed {
			t.Fatalf("call %d should pass", i)
		}
	}
	d := l.Allow("10.0.0.1")
	if d.Allowed || d.Remaining != 0 || d.Limit != 2 {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d.RetryAfter != time.Second {
		t.Fatalf("expected 1s retry at 60/min, got %v", d.RetryAfter)
	}
	if d := l.Allow("10.0.0.2"); !d.Allowed {
		t.Fatal("another client has its own bucket")
	}

	clock.Advance(time.Second)
	if d := l.Allow("10.0.0.1"); !d.Allowed {
		t.Fatal("one token should have refilled")
	}
}

func TestLimiterSweepDropsIdleFullBuckets(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(1, 60, clock)
	l.Allow("a")
	l.Allow("b")

	if dropped := l.Sweep(); dropped != 0 {
		t.Fatalf("recent buckets must stay, dropped %d", dropped)
	}
	clock.Advance(2 * time.Minute)
	l.Allow("b")
	if dropped := l.Sweep(); dropped != 1 || l.Len() != 1 {
		t.Fatalf("expected only the idle bucket dropped, dropped=%d len=%d", dropped, l.Len())
	}
}

type hitCounter map[string]int

func (h hitCounter) RecordRateLimitHit(endpoint string) { h[endpoint]++ }

func TestMiddlewareRejectsWith429(t *testing.T) {
	clock := newFakeClock()
	hits := hitCounter{}
	m := NewMiddleware(newTestLimiter(1, 30, clock), "chat", hits, nil)
	calls := 0
	h := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("192.0.2.1:5000"); rec.Code != http.StatusOK || rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("first call: %d %v", rec.Code, rec.Header())
	}
	rec := do("192.0.2.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected Retry-After 2 at 30/min, got %q", rec.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != "rate limit exceeded" {
		t.Fatalf("unexpected body %q (%v)", rec.Body.String(), err)
	}
	if calls != 1 || hits["chat"] != 1 {
		t.Fatalf("calls=%d hits=%v", calls, hits)
	}
	if rec := do("192.0.2.9:5000"); rec.Code != http.StatusOK {
		t.Fatalf("other client should pass, got %d", rec.Code)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	if got := ClientKey(req); got != "2001:db8::1" {
		t.Fatalf("unexpected key %q", got)
	}
	req.RemoteAddr = "198.51.100.7"
	if got := ClientKey(req); got != "198.51.100.7" {
		t.Fatalf("unexpected key %q", got)
	}
}
