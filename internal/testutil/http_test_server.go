package testutil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type IPv4Server struct {
	URL       string
	listener  net.Listener
	server    *http.Server
	transport *http.Transport
	client    *http.Client
}

// NewIPv4Server starts an HTTP server bound to the IPv4 loopback interface.
func NewIPv4Server(t *testing.T, handler http.Handler) *IPv4Server {
	t.Helper()
	if handler == nil {
		handler = http.NewServeMux()
	}
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: tcp4 loopback unavailable (%v)", err)
	}
	transport := &http.Transport{}
	s := &IPv4Server{
		URL:       "http://" + l.Addr().String(),
		listener:  l,
		server:    &http.Server{Handler: handler},
		transport: transport,
		client:    &http.Client{Transport: transport},
	}
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("IPv4Server serve error: %v", err)
		}
	}()
	return s
}

// Client returns an HTTP client configured for the server.
func (s *IPv4Server) Client() *http.Client {
	return s.client
}

// Close shuts down the underlying server and frees resources.
func (s *IPv4Server) Close() {
	s.transport.CloseIdleConnections()
	_ = s.server.Close()
}

// RoundTripperFunc adapts a function into an http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// CountingBody is an upstream body double that yields one chunk per Read and
// counts how many reads were issued. With Endless set it never reports EOF.
type CountingBody struct {
	Chunks  []string
	Endless bool

	reads  atomic.Int64
	closed atomic.Bool
	mu     sync.Mutex
	next   int
}

func (b *CountingBody) Read(p []byte) (int, error) {
	b.reads.Add(1)
	if b.closed.Load() {
		return 0, errors.New("read on closed body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.next >= len(b.Chunks) {
		if !b.Endless || len(b.Chunks) == 0 {
			return 0, io.EOF
		}
		b.next = 0
	}
	n := copy(p, b.Chunks[b.next])
	b.next++
	return n, nil
}

func (b *CountingBody) Close() error {
	b.closed.Store(true)
	return nil
}

// Reads reports how many Read calls were made.
func (b *CountingBody) Reads() int64 { return b.reads.Load() }

// Closed reports whether Close was called.
func (b *CountingBody) Closed() bool { return b.closed.Load() }

// UpstreamResponse builds a canned upstream reply around body.
func UpstreamResponse(r *http.Request, status int, contentType string, body io.ReadCloser) *http.Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
		Body:       body,
		Request:    r,
	}
}

// StringBody wraps s as a response body.
func StringBody(s string) io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }

// CancelOnWrite is a ResponseWriter that cancels the request context after
// the given number of writes, simulating a caller that hangs up mid-stream.
type CancelOnWrite struct {
	http.ResponseWriter
	After  int
	Cancel context.CancelFunc

	writes int
}

func (w *CancelOnWrite) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.writes++
	if w.writes >= w.After && w.Cancel != nil {
		w.Cancel()
	}
	return n, err
}

func (w *CancelOnWrite) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Writes reports how many body writes reached the writer.
func (w *CancelOnWrite) Writes() int { return w.writes }
