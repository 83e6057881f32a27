package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/TAO-07/no-one-answer/internal/health"
	"github.com/TAO-07/no-one-answer/internal/httpserver/protocol"
	"github.com/TAO-07/no-one-answer/internal/metrics"
	"github.com/TAO-07/no-one-answer/internal/ratelimit"
	"github.com/TAO-07/no-one-answer/internal/records"
)

// The asset catch-all is registered last.
var defaultEndpointKeys = []string{"chat", "records", "health", "metrics", "assets"}

// HealthChecker is satisfied by *health.Checker.
type HealthChecker interface {
	Check(ctx context.Context) health.HealthStatus
}

// Config carries the handlers and stores the HTTP layer routes to.
// Nil members disable their endpoint.
type Config struct {
	Chat    http.Handler
	Records records.Store
	Assets  http.Handler
	Health  HealthChecker
	// Metrics counts every request and serves GET /metrics.
	Metrics *metrics.Collector
	// ChatLimiter throttles /api/chat per client; nil disables it.
	ChatLimiter *ratelimit.Limiter
	// EndpointKeys selects the surfaces to mount; empty mounts all of them.
	EndpointKeys []string
	Logger       *log.Logger
	LogLevel     string
}

// Server exposes the relay, record and asset endpoints of relayd.
type Server struct {
	chat    http.Handler
	records records.Store
	assets  http.Handler
	health  HealthChecker
	metrics *metrics.Collector

	chatLimiter *ratelimit.Limiter

	endpointKeys []string

	logger   *log.Logger
	logLevel string
}

// New constructs a Server with the given dependencies.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[relayd/http] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Server{
		chat:         cfg.Chat,
		records:      cfg.Records,
		assets:       cfg.Assets,
		health:       cfg.Health,
		metrics:      cfg.Metrics,
		chatLimiter:  cfg.ChatLimiter,
		endpointKeys: normalizeEndpointKeys(cfg.EndpointKeys, defaultEndpointKeys),
		logger:       logger,
		logLevel:     strings.ToLower(strings.TrimSpace(cfg.LogLevel)),
	}
}

// SetLogger configures log level and destination.
func (s *Server) SetLogger(level string, logger *log.Logger) {
	s.logLevel = strings.ToLower(strings.TrimSpace(level))
	if logger != nil {
		s.logger = logger
	}
}

// Router returns the HTTP handler for every configured endpoint.
func (s *Server) Router() http.Handler {
	r := s.newBaseRouter()
	s.registerEndpointKeys(r, s.endpointKeys...)
	return r
}

func (s *Server) newBaseRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, errors.New("not found"))
	})
	return r
}

func (s *Server) registerEndpoints(r chi.Router, endpoints ...protocol.Endpoint) {
	for _, ep := range endpoints {
		if ep == nil {
			continue
		}
		s.debugf("registering endpoint %s", ep.Name())
		for _, route := range ep.Routes() {
			if route.Method == "" {
				r.Handle(route.Path, route.Handler)
				continue
			}
			r.Method(route.Method, route.Path, route.Handler)
		}
	}
}

func (s *Server) registerEndpointKeys(r chi.Router, keys ...string) int {
	var endpoints []protocol.Endpoint
	for _, key := range keys {
		if ep := s.endpointByKey(key); ep != nil {
			endpoints = append(endpoints, ep)
		} else {
			s.debugf("endpoint %s unavailable, skipping registration", key)
		}
	}
	s.registerEndpoints(r, endpoints...)
	return len(endpoints)
}

func (s *Server) endpointByKey(key string) protocol.Endpoint {
	switch key {
	case "chat", "relay":
		if s.chat != nil {
			return newChatEndpoint(s)
		}
	case "records":
		if s.records != nil {
			return newRecordsEndpoint(s)
		}
	case "health", "status":
		return newHealthEndpoint(s)
	case "metrics":
		if s.metrics != nil {
			return newMetricsEndpoint(s)
		}
	case "assets", "static":
		if s.assets != nil {
			return newAssetsEndpoint(s)
		}
	}
	return nil
}

func normalizeEndpointKeys(list []string, defaults []string) []string {
	if len(list) == 0 {
		list = defaults
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, key := range list {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func (s *Server) isDebug() bool { return s.logLevel == "debug" }

func (s *Server) debugf(format string, args ...any) {
	if s.logger != nil && s.isDebug() {
		s.logger.Printf("DEBUG "+format, args...)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	s.respondJSON(w, status, map[string]any{"error": err.Error()})
}
