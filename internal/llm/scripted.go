package llm

import (
	"context"
	"fmt"
)

// ScriptedCallback replays a fixed sequence of responses, one per Call,
// useful for deterministic SubAgent tests without a live vendor client. A
// scripted entry may instead be a *CallError, in which case Call returns
// it as the invocation's error (exercising retry/terminal-error paths).
type ScriptedCallback struct {
	turns []any // Response or *CallError, in order
	next  int
	calls []Request // every request seen, for assertions
}

// NewScripted builds a ScriptedCallback from an ordered list of turns.
func NewScripted(turns ...any) *ScriptedCallback {
	return &ScriptedCallback{turns: turns}
}

func (s *ScriptedCallback) Call(ctx context.Context, req Request) (Response, error) {
	s.calls = append(s.calls, req)
	if s.next >= len(s.turns) {
		return Response{}, &CallError{Reason: ReasonOther, Message: "scripted callback exhausted"}
	}
	turn := s.turns[s.next]
	s.next++
	switch t := turn.(type) {
	case Response:
		return t, nil
	case *CallError:
		return Response{}, t
	case string:
		return Response{Content: t}, nil
	default:
		return Response{}, fmt.Errorf("scripted turn %d has unsupported type %T", s.next-1, turn)
	}
}

// Requests returns every request this callback has observed so far, in
// call order.
func (s *ScriptedCallback) Requests() []Request {
	return s.calls
}

// CallCount reports how many times Call has been invoked.
func (s *ScriptedCallback) CallCount() int {
	return len(s.calls)
}
