package relay

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMethodNotAllowed  = errors.New("method not allowed")
	ErrMissingCredential = errors.New("missing upstream API key in env (DEEPSEEK_API_KEY)")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrBodyTooLarge      = errors.New("request body too large")
)

// UpstreamError carries a non-success upstream reply so it can be passed
// through to the caller without reinterpretation.
type UpstreamError struct {
	Status      int
	Body        []byte
	ContentType string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, previewBytes(e.Body, 256))
}

// statusFor maps relay errors onto HTTP status codes.
func statusFor(err error) int {
	var upErr *UpstreamError
	switch {
	case errors.As(err, &upErr):
		return upErr.Status
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func previewBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
