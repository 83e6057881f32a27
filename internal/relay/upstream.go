package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/TAO-07/no-one-answer/internal/chat"
)

const defaultBaseURL = "https://api.deepseek.com/v1"

// Upstream sends chat requests to an OpenAI-compatible completions API.
type Upstream struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// UpstreamConfig holds configuration for the upstream client.
type UpstreamConfig struct {
	APIKey  string
	BaseURL string // optional, defaults to https://api.deepseek.com/v1
	// ResponseHeaderTimeout bounds connect + time to first byte. Bodies are
	// never bounded so long streams survive.
	ResponseHeaderTimeout time.Duration
	// Transport overrides the HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

// NewUpstream creates an Upstream client. An empty API key is accepted here;
// the relay reports it per request.
func NewUpstream(cfg UpstreamConfig) *Upstream {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := cfg.ResponseHeaderTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
		}
	}

	return &Upstream{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: transport},
	}
}

// BaseURL returns the normalized upstream base URL.
func (u *Upstream) BaseURL() string { return u.baseURL }

// HasCredential reports whether an API key was configured.
func (u *Upstream) HasCredential() bool { return strings.TrimSpace(u.apiKey) != "" }

// Do posts req to the completions endpoint. The caller owns the response body.
// Cancelling ctx aborts any in-progress body read and releases the connection.
func (u *Upstream) Do(ctx context.Context, req chat.Request) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+u.apiKey)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := u.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream: send request: %w", err)
	}
	return resp, nil
}
