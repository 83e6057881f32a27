// Package relay forwards chat requests to an upstream completions API. A
// streamed upstream reply is copied to the caller byte for byte; a buffered
// reply is returned as a single JSON document.
package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/TAO-07/no-one-answer/internal/chat"
)

const defaultMaxBodyBytes = 4 << 20

// Relay is the http.Handler behind POST /api/chat. It keeps no state across
// calls.
type Relay struct {
	upstream     *Upstream
	defaultModel string
	maxBodyBytes int64
	logger       *log.Logger
	logLevel     string
}

// Config wires a Relay.
type Config struct {
	Upstream     *Upstream
	DefaultModel string
	MaxBodyBytes int64
	Logger       *log.Logger
	LogLevel     string
}

// New constructs a Relay.
func New(cfg Config) *Relay {
	up := cfg.Upstream
	if up == nil {
		up = NewUpstream(UpstreamConfig{})
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Relay{
		upstream:     up,
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
		maxBodyBytes: maxBody,
		logger:       cfg.Logger,
		logLevel:     strings.ToLower(strings.TrimSpace(cfg.LogLevel)),
	}
}

type inboundRequest struct {
	Messages    json.RawMessage `json:"messages"`
	Model       string          `json:"model"`
	Stream      *bool           `json:"stream"`
	Temperature *float64        `json:"temperature"`
}

// ServeHTTP implements the relay contract. Every failure is converted into an
// HTTP response here; nothing escapes to the transport layer.
func (h *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.respondError(w, ErrMethodNotAllowed)
		return
	}
	if !h.upstream.HasCredential() {
		h.respondError(w, ErrMissingCredential)
		return
	}

	req, err := h.decodeRequest(w, r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.debugf("relay: POST %s/chat/completions model=%s stream=%v messages=%d", h.upstream.BaseURL(), req.Model, req.Stream, len(req.Messages))

	resp, err := h.upstream.Do(r.Context(), req)
	if err != nil {
		if r.Context().Err() != nil {
			h.debugf("relay: caller went away before upstream replied: %v", err)
			return
		}
		h.respondError(w, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			h.respondError(w, fmt.Errorf("upstream: read error body: %w", err))
			return
		}
		h.passthroughError(w, &UpstreamError{
			Status:      resp.StatusCode,
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
		})
		return
	}

	if req.Stream {
		h.streamBody(w, r, resp.Body)
		return
	}
	h.forwardJSON(w, resp.Body)
}

func (h *Relay) decodeRequest(w http.ResponseWriter, r *http.Request) (chat.Request, error) {
	var in inboundRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return chat.Request{}, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return chat.Request{}, fmt.Errorf("%w: invalid JSON body: %v", ErrInvalidRequest, err)
	}
	raw := bytes.TrimSpace(in.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		return chat.Request{}, fmt.Errorf("%w: messages must be an array", ErrInvalidRequest)
	}
	var messages []chat.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return chat.Request{}, fmt.Errorf("%w: malformed messages: %v", ErrInvalidRequest, err)
	}
	if err := chat.ValidateMessages(messages); err != nil {
		return chat.Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	stream := true
	if in.Stream != nil {
		stream = *in.Stream
	}
	req := chat.Request{
		Model:       strings.TrimSpace(in.Model),
		Messages:    messages,
		Stream:      stream,
		Temperature: in.Temperature,
	}
	return req.WithDefaults(h.defaultModel), nil
}

// streamBody copies upstream bytes to the caller chunk by chunk. The caller's
// context is checked before every read; once it is done no further upstream
// reads happen and the deferred Close releases the connection.
func (h *Relay) streamBody(w http.ResponseWriter, r *http.Request, body io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, errors.New("streaming unsupported"))
		return
	}
	header := w.Header()
	header.Set("Content-Type", "text/event-stream; charset=utf-8")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	buf := make([]byte, 8192)
	var relayed int64
	for {
		if err := ctx.Err(); err != nil {
			h.debugf("relay: caller disconnected after %d bytes", relayed)
			return
		}
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				h.debugf("relay: write to caller failed after %d bytes: %v", relayed, werr)
				return
			}
			relayed += int64(n)
			flusher.Flush()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil && h.logger != nil {
				h.logger.Printf("relay: upstream stream aborted after %d bytes: %v", relayed, err)
			}
			return
		}
	}
}

func (h *Relay) forwardJSON(w http.ResponseWriter, body io.Reader) {
	data, err := io.ReadAll(body)
	if err != nil {
		h.respondError(w, fmt.Errorf("upstream: read response: %w", err))
		return
	}
	if !json.Valid(data) {
		h.respondError(w, fmt.Errorf("upstream: malformed JSON response: %s", previewBytes(data, 128)))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Relay) passthroughError(w http.ResponseWriter, upErr *UpstreamError) {
	if h.logger != nil {
		h.logger.Printf("relay: %v", upErr)
	}
	ct := upErr.ContentType
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(upErr.Status)
	_, _ = w.Write(upErr.Body)
}

func (h *Relay) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Printf("relay: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}

func (h *Relay) debugf(format string, args ...any) {
	if h.logger != nil && h.logLevel == "debug" {
		h.logger.Printf("DEBUG "+format, args...)
	}
}
