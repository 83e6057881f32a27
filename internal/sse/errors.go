package sse

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedPayload marks a data line that is not JSON. It is recovered
	// per line.
	ErrMalformedPayload = errors.New("sse: malformed payload")
	// ErrEventTooLarge is returned when the stream never delivers a separator
	// within the carry-over cap.
	ErrEventTooLarge = errors.New("sse: event too large")
)

// StatusError reports a non-success relay reply received before streaming.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "API request failed"
	}
	return fmt.Sprintf("sse: relay status %d: %s", e.StatusCode, msg)
}
