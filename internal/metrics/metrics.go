package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// unmatchedRoute labels requests no route claimed.
const unmatchedRoute = "unmatched"

type requestKey struct {
	route string
	code  string
}

// Collector counts HTTP traffic per chi route pattern.
type Collector struct {
	mu sync.RWMutex

	requests      map[requestKey]int64
	durationMs    map[string]int64
	inFlight      int64
	rateLimitHits map[string]int64

	startTime time.Time
	now       func() time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		requests:      make(map[requestKey]int64),
		durationMs:    make(map[string]int64),
		rateLimitHits: make(map[string]int64),
		startTime:     time.Now(),
		now:           time.Now,
	}
}

// Middleware records every request once the router has resolved its route.
// The wrapped writer keeps http.Flusher, so streamed replies are unaffected.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := c.now()
		c.mu.Lock()
		c.inFlight++
		c.mu.Unlock()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			c.RecordRequest(route, status, c.now().Sub(start))
			c.mu.Lock()
			c.inFlight--
			c.mu.Unlock()
		}()
		next.ServeHTTP(ww, r)
	})
}

// RecordRequest records a finished request.
func (c *Collector) RecordRequest(route string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests[requestKey{route: route, code: strconv.Itoa(status)}]++
	c.durationMs[route] += duration.Milliseconds()
}

// RecordRateLimitHit records a rejected call.
func (c *Collector) RecordRateLimitHit(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rateLimitHits[endpoint]++
}

// RequestCount is one requests_total sample.
type RequestCount struct {
	Route string
	Code  string
	Count int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime        int64
	Requests      []RequestCount
	DurationMs    map[string]int64
	InFlight      int64
	RateLimitHits map[string]int64
}

// GetSnapshot returns a copy of the current counters.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	reqs := make([]RequestCount, 0, len(c.requests))
	for k, v := range c.requests {
		reqs = append(reqs, RequestCount{Route: k.route, Code: k.code, Count: v})
	}
	return Snapshot{
		Uptime:        int64(c.now().Sub(c.startTime).Seconds()),
		Requests:      reqs,
		DurationMs:    copyMap(c.durationMs),
		InFlight:      c.inFlight,
		RateLimitHits: copyMap(c.rateLimitHits),
	}
}

// Handler serves the Prometheus text exposition.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(FormatPrometheus(c.GetSnapshot())))
	})
}

func copyMap(m map[string]int64) map[string]int64 {
	result := make(map[string]int64, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
