package protocol

import "net/http"

// EndpointRoute binds one handler to a path. An empty Method matches every
// method, leaving method checks to the handler.
type EndpointRoute struct {
	Method  string
	Path    string
	Handler http.Handler
}

// Endpoint groups the routes of one HTTP surface.
type Endpoint interface {
	Name() string
	Routes() []EndpointRoute
}
