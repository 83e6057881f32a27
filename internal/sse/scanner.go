package sse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// EventSeparator terminates one SSE event in the stream.
const EventSeparator = "\n\n"

// DefaultMaxEventBytes caps the carry-over buffer for a single event.
const DefaultMaxEventBytes = 1 << 20

var eventSep = []byte(EventSeparator)

// splitEvents is a bufio.SplitFunc that yields "\n\n"-delimited events. The
// scanner keeps the unterminated tail as carry-over between reads, so chunk
// boundaries never line up with what the caller sees. At EOF the tail, if
// any, is yielded as the final event.
func splitEvents(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, eventSep); i >= 0 {
		return i + len(eventSep), data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// EventReader reassembles SSE events from an arbitrarily chunked stream.
type EventReader struct {
	scanner  *bufio.Scanner
	maxBytes int
}

// NewEventReader wraps r. maxBytes <= 0 selects DefaultMaxEventBytes.
func NewEventReader(r io.Reader, maxBytes int) *EventReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxEventBytes
	}
	initial := 4096
	if initial > maxBytes {
		initial = maxBytes
	}
	sc := bufio.NewScanner(r)
	// The scanner needs room for the separator on top of the event itself.
	sc.Buffer(make([]byte, 0, initial), maxBytes+len(eventSep))
	sc.Split(splitEvents)
	return &EventReader{scanner: sc, maxBytes: maxBytes}
}

// Next returns the next complete event. It returns io.EOF once the stream
// is drained, ErrEventTooLarge when an event outgrows the buffer cap, and
// the underlying read error otherwise.
func (r *EventReader) Next() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	err := r.scanner.Err()
	switch {
	case err == nil:
		return "", io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return "", fmt.Errorf("%w: exceeds %d bytes without a separator", ErrEventTooLarge, r.maxBytes)
	default:
		return "", err
	}
}
