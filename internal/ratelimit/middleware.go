package ratelimit

import (
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
)

// HitRecorder counts rejected calls; *metrics.Collector satisfies it.
type HitRecorder interface {
	RecordRateLimitHit(endpoint string)
}

// Middleware rejects clients that exhausted their bucket with 429.
type Middleware struct {
	limiter  *Limiter
	endpoint string
	hits     HitRecorder
	logger   *log.Logger
}

// NewMiddleware wraps limiter for the named endpoint. hits and logger may be nil.
func NewMiddleware(limiter *Limiter, endpoint string, hits HitRecorder, logger *log.Logger) *Middleware {
	return &Middleware{limiter: limiter, endpoint: endpoint, hits: hits, logger: logger}
}

// Wrap applies the limiter to next. A nil limiter returns next unchanged.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := m.limiter.Allow(ClientKey(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		if m.hits != nil {
			m.hits.RecordRateLimitHit(m.endpoint)
		}
		if m.logger != nil {
			m.logger.Printf("rate limit exceeded: endpoint=%s path=%s", m.endpoint, r.URL.Path)
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
	})
}

// ClientKey identifies the caller by remote host. chi's RealIP middleware has
// already applied X-Forwarded-For by the time this runs.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
