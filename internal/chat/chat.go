package chat

import (
	"errors"
	"fmt"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// DefaultModel is used when a request does not name a model.
	DefaultModel = "deepseek-chat"
	// DefaultTemperature is forwarded when a request leaves temperature unset.
	DefaultTemperature = 0.7
)

var (
	ErrNoMessages  = errors.New("messages must be a non-empty array")
	ErrUnknownRole = errors.New("unknown message role")
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one chronological turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the payload sent to the upstream completions endpoint.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// ValidateMessages checks the ordered history invariant: at least one turn,
// every turn carrying a known role.
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return ErrNoMessages
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return fmt.Errorf("%w %q at index %d", ErrUnknownRole, m.Role, i)
		}
	}
	return nil
}

// WithDefaults fills model and temperature when the caller left them empty.
func (r Request) WithDefaults(defaultModel string) Request {
	if r.Model == "" {
		r.Model = defaultModel
	}
	if r.Model == "" {
		r.Model = DefaultModel
	}
	if r.Temperature == nil {
		t := DefaultTemperature
		r.Temperature = &t
	}
	return r
}
