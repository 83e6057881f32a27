package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome of a call the hotline received.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDeclined Outcome = "declined"
	OutcomeMissed   Outcome = "missed"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAccepted, OutcomeDeclined, OutcomeMissed:
		return true
	default:
		return false
	}
}

// DefaultListLimit applies when List is called without a positive limit.
const DefaultListLimit = 50

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is one pickup log entry.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Caller    string    `json:"caller"`
	Outcome   Outcome   `json:"outcome"`
	Note      string    `json:"note"`
	Tags      []string  `json:"tags"`
	CallAt    time.Time `json:"call_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines persistence behaviour for pickup records.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	// List returns records newest call first.
	List(ctx context.Context, limit int) ([]Record, error)
	// Update replaces the mutable fields of an existing record.
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PingContext(ctx context.Context) error
	Close() error
}

// Normalize validates rec and returns the form stored by every backend:
// trimmed text, de-duplicated tags, call time in UTC at microsecond precision.
func Normalize(rec Record, now time.Time) (Record, error) {
	rec.Caller = strings.TrimSpace(rec.Caller)
	if rec.Caller == "" {
		return Record{}, fmt.Errorf("%w: caller is required", ErrInvalidRecord)
	}
	rec.Outcome = Outcome(strings.ToLower(strings.TrimSpace(string(rec.Outcome))))
	if !rec.Outcome.Valid() {
		return Record{}, fmt.Errorf("%w: unknown outcome %q", ErrInvalidRecord, rec.Outcome)
	}
	rec.Note = strings.TrimSpace(rec.Note)
	rec.Tags = normalizeTags(rec.Tags)
	if rec.CallAt.IsZero() {
		rec.CallAt = now
	}
	rec.CallAt = Timestamp(rec.CallAt)
	return rec, nil
}

// Timestamp truncates t to the precision every backend keeps.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// ClampLimit applies DefaultListLimit to non-positive limits.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
