package main

import (
	"context"
	"fmt"
	"io"

	"github.com/TAO-07/no-one-answer/internal/chat"
	"github.com/TAO-07/no-one-answer/internal/sse"
)

// pingPrompt checks the relay end to end.
const pingPrompt = `你好，请回复"连接成功"`

// session keeps the conversation and runs one assembler call per turn.
type session struct {
	assembler *sse.Assembler
	system    string
	history   []chat.Message
	out       io.Writer
}

func newSession(a *sse.Assembler, system string, out io.Writer) *session {
	return &session{assembler: a, system: system, out: out}
}

// messages returns the system prompt, the stored turns, then the new user turn.
func (s *session) messages(user string) []chat.Message {
	msgs := make([]chat.Message, 0, len(s.history)+2)
	if s.system != "" {
		msgs = append(msgs, chat.Message{Role: chat.RoleSystem, Content: s.system})
	}
	msgs = append(msgs, s.history...)
	return append(msgs, chat.Message{Role: chat.RoleUser, Content: user})
}

// turn sends one user line and blocks until the call ends. Only a completed
// reply is added to the history.
func (s *session) turn(ctx context.Context, user string) (sse.State, error) {
	var (
		full    string
		callErr error
	)
	h := s.assembler.Start(ctx, s.messages(user), sse.Callbacks{
		OnDelta:    func(delta string) { fmt.Fprint(s.out, delta) },
		OnComplete: func(text string) { full = text },
		OnError:    func(err error) { callErr = err },
	})
	state := h.Wait()
	if state == sse.StateCompleted {
		s.history = append(s.history,
			chat.Message{Role: chat.RoleUser, Content: user},
			chat.Message{Role: chat.RoleAssistant, Content: full},
		)
	}
	return state, callErr
}

// ping runs a throwaway call outside the history.
func (s *session) ping(ctx context.Context) (string, error) {
	var (
		full    string
		callErr error
	)
	h := s.assembler.Start(ctx, []chat.Message{{Role: chat.RoleUser, Content: pingPrompt}}, sse.Callbacks{
		OnComplete: func(text string) { full = text },
		OnError:    func(err error) { callErr = err },
	})
	if state := h.Wait(); state == sse.StateCancelled {
		return "", context.Canceled
	}
	return full, callErr
}

func (s *session) reset() {
	s.history = nil
}
