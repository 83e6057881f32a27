package httpserver

import (
	"net/http"

	"github.com/TAO-07/no-one-answer/internal/httpserver/protocol"
)

type assetsEndpoint struct {
	server *Server
}

func newAssetsEndpoint(server *Server) protocol.Endpoint {
	return &assetsEndpoint{server: server}
}

func (e *assetsEndpoint) Name() string { return "assets" }

func (e *assetsEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Method: http.MethodGet, Path: "/*", Handler: e.server.assets},
		{Method: http.MethodHead, Path: "/*", Handler: e.server.assets},
	}
}
