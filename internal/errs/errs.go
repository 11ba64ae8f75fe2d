// Package errs defines the closed error taxonomy that crosses the PTC-Lisp
// core boundary. Every error the reader, analyzer, evaluator, sandbox,
// signature validator, and SubAgent loop can produce is one of these Kinds,
// wrapped in an *Error so callers can type-switch on Kind rather than
// matching error strings.
package errs

import "fmt"

// Kind is the closed set of error categories a caller can type-switch on.
type Kind string

const (
	KindParseError          Kind = "parse_error"
	KindAnalysisError       Kind = "analysis_error"
	KindUnboundVar          Kind = "unbound_var"
	KindBadDestructure      Kind = "bad_destructure"
	KindArityError          Kind = "arity_error"
	KindTypeError           Kind = "type_error"
	KindNotCallable         Kind = "not_callable"
	KindToolError           Kind = "tool_error"
	KindLoopLimitExceeded   Kind = "loop_limit_exceeded"
	KindTimeout             Kind = "timeout"
	KindMemoryExceeded      Kind = "memory_exceeded"
	KindValidationError     Kind = "validation_error"
	KindNoCodeFound         Kind = "no_code_found"
	KindLLMError            Kind = "llm_error"
	KindMaxTurnsExceeded    Kind = "max_turns_exceeded"
	KindTurnBudgetExhausted Kind = "turn_budget_exhausted"
	KindMissionTimeout      Kind = "mission_timeout"
	KindChainedFailure      Kind = "chained_failure"
)

// Error is the single error type crossing the core boundary.
type Error struct {
	Kind    Kind
	Message string
	Detail  map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New constructs an Error; detail may be nil.
func New(kind Kind, message string, detail map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Detail: detail}
}

// Is implements errors.Is comparison against another *Error by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from any error produced by this package,
// defaulting to "" for foreign errors.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

// Fatal reports whether a Kind unconditionally terminates a SubAgent
// mission when a turn's evaluation produces it; every other kind becomes
// next-turn feedback bounded by retry_turns. KindMemoryExceeded is
// deliberately absent: whether it is fatal depends on the mission's memory
// strategy (strict vs rollback), a policy decision internal/subagent
// layers on top of this classification.
func (k Kind) Fatal() bool {
	switch k {
	case KindTimeout, KindMissionTimeout:
		return true
	default:
		return false
	}
}
