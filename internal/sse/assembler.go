// Package sse turns the relay's event stream back into ordered content
// deltas. An Assembler owns at most one in-flight call; starting a new call
// supersedes the previous one.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/TAO-07/no-one-answer/internal/chat"
)

// State of one call.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateCancelled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	default:
		return "idle"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateErrored
}

// Callbacks receive the outcome of one call. OnComplete and OnError are
// mutually exclusive and fire at most once; neither fires for a call that was
// already cancelled when it ended. A call that ends on its own just as Start
// supersedes it may still deliver its final callback while the new call is
// running. Start does not wait for it, so callbacks may call Start.
type Callbacks struct {
	OnDelta    func(delta string)
	OnComplete func(fullText string)
	OnError    func(err error)
}

// RequestHandle is the cancellable token for one in-flight call.
type RequestHandle struct {
	ID string

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state State
}

// Cancel stops the call. It is silent: no callback fires afterwards.
func (h *RequestHandle) Cancel() {
	h.mu.Lock()
	if !h.state.Terminal() {
		h.state = StateCancelled
	}
	h.mu.Unlock()
	h.cancel()
}

// State returns the current state.
func (h *RequestHandle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the call has fully unwound.
func (h *RequestHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the call unwinds and returns its terminal state.
func (h *RequestHandle) Wait() State {
	<-h.done
	return h.State()
}

func (h *RequestHandle) advance(from, to State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != from {
		return false
	}
	h.state = to
	return true
}

func (h *RequestHandle) finish(to State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() {
		return false
	}
	h.state = to
	return true
}

// Config wires an Assembler to a relay.
type Config struct {
	// BaseURL of the relay, e.g. http://localhost:8080.
	BaseURL string
	// Path of the chat endpoint, default /api/chat.
	Path string
	// Model is sent with every call; empty leaves the choice to the relay.
	Model         string
	HTTPClient    *http.Client
	MaxEventBytes int
	Logger        *log.Logger
}

// Assembler issues streaming chat calls and reassembles their deltas.
type Assembler struct {
	endpoint      string
	model         string
	client        *http.Client
	maxEventBytes int
	logger        *log.Logger

	mu      sync.Mutex
	current *RequestHandle
}

// New constructs an Assembler.
func New(cfg Config) *Assembler {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/api/chat"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sse] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Assembler{
		endpoint:      strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/") + path,
		model:         strings.TrimSpace(cfg.Model),
		client:        client,
		maxEventBytes: cfg.MaxEventBytes,
		logger:        logger,
	}
}

// Start cancels any active call and begins a new one in the background.
// Callbacks run on the call's goroutine, in arrival order.
func (a *Assembler) Start(ctx context.Context, messages []chat.Message, cb Callbacks) *RequestHandle {
	a.mu.Lock()
	if prev := a.current; prev != nil {
		prev.Cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	h := &RequestHandle{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateRequesting,
	}
	a.current = h
	a.mu.Unlock()

	go a.run(callCtx, h, messages, cb)
	return h
}

// Cancel stops the active call, if any.
func (a *Assembler) Cancel() {
	if h := a.Active(); h != nil {
		h.Cancel()
	}
}

// Active returns the in-flight handle or nil.
func (a *Assembler) Active() *RequestHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// State reports the active call's state, or StateIdle.
func (a *Assembler) State() State {
	if h := a.Active(); h != nil {
		return h.State()
	}
	return StateIdle
}

func (a *Assembler) release(h *RequestHandle) {
	a.mu.Lock()
	if a.current == h {
		a.current = nil
	}
	a.mu.Unlock()
}

func (a *Assembler) run(ctx context.Context, h *RequestHandle, messages []chat.Message, cb Callbacks) {
	defer close(h.done)
	defer a.release(h)
	defer h.cancel()

	resp, err := a.send(ctx, h, messages)
	if err != nil {
		a.fail(ctx, h, cb, err)
		return
	}
	defer resp.Body.Close()

	if !h.advance(StateRequesting, StateStreaming) {
		return
	}

	var full strings.Builder
	events := NewEventReader(resp.Body, a.maxEventBytes)
	for {
		event, err := events.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			a.fail(ctx, h, cb, err)
			return
		}
		for _, delta := range EventDeltas(event, a.warn) {
			if h.State() != StateStreaming {
				return
			}
			full.WriteString(delta)
			if cb.OnDelta != nil {
				cb.OnDelta(delta)
			}
		}
	}

	if h.advance(StateStreaming, StateCompleted) && cb.OnComplete != nil {
		cb.OnComplete(full.String())
	}
}

type callRequest struct {
	Messages []chat.Message `json:"messages"`
	Stream   bool           `json:"stream"`
	Model    string         `json:"model,omitempty"`
}

func (a *Assembler) send(ctx context.Context, h *RequestHandle, messages []chat.Message) (*http.Response, error) {
	body, err := json.Marshal(callRequest{Messages: messages, Stream: true, Model: a.model})
	if err != nil {
		return nil, fmt.Errorf("sse: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sse: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-Request-ID", h.ID)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sse: request relay: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(text)}
	}
	return resp, nil
}

// fail routes a fault. Cancellation through the handle, a superseding Start
// or the caller's context is swallowed; an expired deadline is a fault.
func (a *Assembler) fail(ctx context.Context, h *RequestHandle, cb Callbacks, err error) {
	if h.State() == StateCancelled || errors.Is(ctx.Err(), context.Canceled) {
		h.finish(StateCancelled)
		return
	}
	if !h.finish(StateErrored) {
		return
	}
	a.logger.Printf("call %s failed: %v", h.ID, err)
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func (a *Assembler) warn(line string, err error) {
	a.logger.Printf("WARN skipping data line %q: %v", preview(line, 120), err)
}
