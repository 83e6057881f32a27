package httpserver

import (
	"net/http"

	"github.com/TAO-07/no-one-answer/internal/httpserver/protocol"
)

type recordsEndpoint struct {
	server *Server
}

func newRecordsEndpoint(server *Server) protocol.Endpoint {
	return &recordsEndpoint{server: server}
}

func (e *recordsEndpoint) Name() string { return "records" }

func (e *recordsEndpoint) Routes() []protocol.EndpointRoute {
	s := e.server
	return []protocol.EndpointRoute{
		{Method: http.MethodGet, Path: "/api/records", Handler: http.HandlerFunc(s.handleListRecords)},
		{Method: http.MethodPost, Path: "/api/records", Handler: http.HandlerFunc(s.handleCreateRecord)},
		{Method: http.MethodGet, Path: "/api/records/{id}", Handler: http.HandlerFunc(s.handleGetRecord)},
		{Method: http.MethodPut, Path: "/api/records/{id}", Handler: http.HandlerFunc(s.handleUpdateRecord)},
		{Method: http.MethodDelete, Path: "/api/records/{id}", Handler: http.HandlerFunc(s.handleDeleteRecord)},
	}
}
