package httpserver

import (
	"net/http"

	"github.com/TAO-07/no-one-answer/internal/httpserver/protocol"
	"github.com/TAO-07/no-one-answer/internal/ratelimit"
)

type chatEndpoint struct {
	server *Server
}

func newChatEndpoint(server *Server) protocol.Endpoint {
	return &chatEndpoint{server: server}
}

func (e *chatEndpoint) Name() string { return "chat" }

// The relay answers every method itself so non-POST calls get its 405.
func (e *chatEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Path: "/api/chat", Handler: e.handler()},
	}
}

func (e *chatEndpoint) handler() http.Handler {
	s := e.server
	if s.chatLimiter == nil {
		return s.chat
	}
	var hits ratelimit.HitRecorder
	if s.metrics != nil {
		hits = s.metrics
	}
	return ratelimit.NewMiddleware(s.chatLimiter, e.Name(), hits, s.logger).Wrap(s.chat)
}
