package sse

import (
	"encoding/json"
	"fmt"
)

// DoneSentinel marks the end of an upstream stream. It never carries content.
const DoneSentinel = "[DONE]"

// DataPrefix introduces a payload line inside an event.
const DataPrefix = "data: "

// PayloadKind classifies a data line.
type PayloadKind int

const (
	// PayloadNone is valid JSON whose shape carries no content.
	PayloadNone PayloadKind = iota
	// PayloadDone is the [DONE] sentinel.
	PayloadDone
	// PayloadDelta is the flat shape {"delta": "..."}.
	PayloadDelta
	// PayloadChoices is the OpenAI shape {"choices":[{"delta":{"content":"..."}}]}.
	PayloadChoices
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadDone:
		return "done"
	case PayloadDelta:
		return "delta"
	case PayloadChoices:
		return "choices"
	default:
		return "none"
	}
}

// Payload is one classified data line.
type Payload struct {
	Kind    PayloadKind
	Content string
}

// HasContent reports whether the payload contributes text to the reply.
func (p Payload) HasContent() bool {
	return (p.Kind == PayloadDelta || p.Kind == PayloadChoices) && p.Content != ""
}

type choiceChunk struct {
	Delta struct {
		Content *string `json:"content"`
	} `json:"delta"`
}

// ParsePayload parses and classifies a trimmed data value in one step. The
// flat delta shape wins over the choices shape. Well-formed JSON of any other
// shape classifies as PayloadNone; only text that is not JSON at all yields
// ErrMalformedPayload.
func ParsePayload(data string) (Payload, error) {
	if data == DoneSentinel {
		return Payload{Kind: PayloadDone}, nil
	}
	raw := []byte(data)
	if !json.Valid(raw) {
		return Payload{}, fmt.Errorf("%w: %q", ErrMalformedPayload, preview(data, 120))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Valid JSON but not an object.
		return Payload{Kind: PayloadNone}, nil
	}

	if rawDelta, ok := fields["delta"]; ok {
		var s string
		if json.Unmarshal(rawDelta, &s) == nil && s != "" {
			return Payload{Kind: PayloadDelta, Content: s}, nil
		}
	}

	if rawChoices, ok := fields["choices"]; ok {
		var choices []choiceChunk
		if json.Unmarshal(rawChoices, &choices) == nil && len(choices) > 0 {
			if c := choices[0].Delta.Content; c != nil && *c != "" {
				return Payload{Kind: PayloadChoices, Content: *c}, nil
			}
		}
	}
	return Payload{Kind: PayloadNone}, nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
