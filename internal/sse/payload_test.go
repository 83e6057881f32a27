package sse

import (
	"errors"
	"reflect"
	"testing"
)

func TestParsePayload(t *testing.T) {
	cases := []struct {
		name string
		data string
		want Payload
	}{
		{"done", `[DONE]`, Payload{Kind: PayloadDone}},
		{"flat delta", `{"delta":"He"}`, Payload{Kind: PayloadDelta, Content: "He"}},
		{"choices", `{"choices":[{"index":0,"delta":{"content":"llo"},"finish_reason":null}]}`, Payload{Kind: PayloadChoices, Content: "llo"}},
		{"flat wins", `{"delta":"a","choices":[{"delta":{"content":"b"}}]}`, Payload{Kind: PayloadDelta, Content: "a"}},
		{"empty flat falls through", `{"delta":"","choices":[{"delta":{"content":"b"}}]}`, Payload{Kind: PayloadChoices, Content: "b"}},
		{"role only chunk", `{"choices":[{"delta":{"role":"assistant"}}]}`, Payload{Kind: PayloadNone}},
		{"null content", `{"choices":[{"delta":{"content":null}}]}`, Payload{Kind: PayloadNone}},
		{"empty content", `{"choices":[{"delta":{"content":""}}]}`, Payload{Kind: PayloadNone}},
		{"empty choices", `{"choices":[]}`, Payload{Kind: PayloadNone}},
		{"usage chunk", `{"choices":[],"usage":{"total_tokens":3}}`, Payload{Kind: PayloadNone}},
		{"object delta", `{"delta":{"content":"x"}}`, Payload{Kind: PayloadNone}},
		{"wrong choices type", `{"choices":"nope"}`, Payload{Kind: PayloadNone}},
		{"array", `[1,2]`, Payload{Kind: PayloadNone}},
		{"number", `42`, Payload{Kind: PayloadNone}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePayload(tc.data)
			if err != nil {
				t.Fatalf("ParsePayload(%q) error: %v", tc.data, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParsePayload(%q) = %+v, want %+v", tc.data, got, tc.want)
			}
		})
	}
}

func TestParsePayloadMalformed(t *testing.T) {
	for _, data := range []string{`{"delta":`, `not json`, `{"delta":"x"}}`, ``} {
		if _, err := ParsePayload(data); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("ParsePayload(%q) expected ErrMalformedPayload, got %v", data, err)
		}
	}
}

func TestPayloadKindString(t *testing.T) {
	if PayloadChoices.String() != "choices" || PayloadNone.String() != "none" {
		t.Fatalf("unexpected kind names")
	}
}
