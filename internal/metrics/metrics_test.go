package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	c := NewCollector()
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			t.Error("wrapped writer lost http.Flusher")
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	})

	for _, target := range []string{"/api/records/a", "/api/records/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/chat", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	counts := map[string]int64{}
	for _, rc := range c.GetSnapshot().Requests {
		counts[rc.Route+" "+rc.Code] = rc.Count
	}
	want := map[string]int64{
		"/api/records/{id} 404": 2,
		"/api/chat 200":         1,
		"unmatched 404":         1,
	}
	for key, n := range want {
		if counts[key] != n {
			t.Fatalf("expected %s=%d, got %v", key, n, counts)
		}
	}
	if c.GetSnapshot().InFlight != 0 {
		t.Fatalf("in-flight gauge should return to zero")
	}
}

func TestFormatPrometheus(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("/api/chat", 200, 1500*time.Millisecond)
	c.RecordRequest("/api/chat", 429, 0)
	c.RecordRequest("/health", 200, 2*time.Millisecond)
	c.RecordRateLimitHit("chat")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	out := rec.Body.String()
	for _, line := range []string{
		"# TYPE noanswer_http_requests_total counter",
		`noanswer_http_requests_total{route="/api/chat",code="200"} 1`,
		`noanswer_http_requests_total{route="/api/chat",code="429"} 1`,
		`noanswer_http_request_duration_ms_total{route="/api/chat"} 1500`,
		`noanswer_rate_limit_hits_total{endpoint="chat"} 1`,
		"noanswer_http_requests_in_flight 0",
	} {
		if !strings.Contains(out, line+"\n") {
			t.Fatalf("missing %q in:\n%s", line, out)
		}
	}
	if strings.Index(out, `route="/api/chat",code="200"`) > strings.Index(out, `route="/health"`) {
		t.Fatalf("samples not sorted by route")
	}
}

func TestEscapeLabel(t *testing.T) {
	if got := escapeLabel("a\"b\\c\nd"); got != `a\"b\\c\nd` {
		t.Fatalf("unexpected escape %q", got)
	}
}
