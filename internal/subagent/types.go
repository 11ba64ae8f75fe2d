package subagent

import (
	"time"

	"ptc-lisp/internal/config"
	"ptc-lisp/internal/types"
	"ptc-lisp/pkg/signature"
	"ptc-lisp/pkg/value"
)

// OutputMode selects how a turn's evaluated value becomes the loop's
// answer.
type OutputMode string

const (
	// OutputModePTCLisp is the only mode eligible for the single-shot fast
	// path: the extracted code's own Return/Fail sentinel (or bare value)
	// is the answer.
	OutputModePTCLisp OutputMode = "ptc_lisp"
)

// Tool is one entry in the tool map handed to a SubAgent: a callable the
// generated program can reach via tool/<name>, plus the signature used to
// render its tool-inventory line.
type Tool struct {
	Name      string
	Signature *signature.Type // must be KindFunc; nil renders as "-> :any"
	Invoke    func(args []value.Value) (value.Value, error)
}

// ToolMap is a read-only set of tools shared across every turn of one
// mission.
type ToolMap map[string]Tool

// executor adapts a ToolMap to types.ToolExecutor for pkg/sandbox. A tool's
// own error never crosses the sandbox boundary as a Go error: it is
// reported back to the caller as (nil, err) and the sandbox's ToolCall log
// records the textual note, but no panic/error ever unwinds into the
// evaluator's goroutine uncaught.
type executor struct {
	tools ToolMap
}

func (e executor) InvokeTool(name string, args []value.Value) (value.Value, error) {
	t, ok := e.tools[name]
	if !ok {
		return value.Nil, nil
	}
	return t.Invoke(args)
}

// Mission bundles one SubAgent task.
type Mission struct {
	// Template is the mission string; {{key}} placeholders are expanded
	// verbatim from Ctx. A missing key leaves the placeholder in place.
	Template string

	Signature *signature.Type // optional; validates the final return value
	Tools     ToolMap

	MaxTurns        int
	RetryTurns      int
	MissionTimeout  time.Duration
	TurnBudget      int // 0 disables the budget
	FloatPrecision  *int
	OutputMode      OutputMode
	DataSampleChars int

	// MemoryStrategy selects what a memory_exceeded breach does to the
	// mission: strict (default) terminates it, rollback discards the turn
	// and feeds a short error back to the LLM.
	MemoryStrategy config.MemoryStrategy

	// FeedbackTemplates are opaque, caller-supplied strings used to build
	// per-turn feedback (retry guidance, must-return warning); each is
	// expanded against Ctx the same way Template is. Empty entries fall
	// back to a built-in default string.
	RetryFeedbackTemplate      string
	MustReturnFeedbackTemplate string
}

// FromConfig seeds a Mission's budget fields from a loaded SubAgentConfig,
// leaving Template/Signature/Tools for the caller to set.
func FromConfig(cfg config.SubAgentConfig) Mission {
	return Mission{
		MaxTurns:        cfg.MaxTurns,
		RetryTurns:      cfg.RetryTurns,
		MissionTimeout:  cfg.MissionTimeout(),
		TurnBudget:      cfg.TurnBudget,
		FloatPrecision:  cfg.FloatPrecision,
		OutputMode:      OutputModePTCLisp,
		DataSampleChars: cfg.DataSampleChars,
		MemoryStrategy:  cfg.MemoryStrategy,
	}
}

// RunOpts bundles the runtime inputs a mission execution needs beyond the
// Mission itself: an LLMCallback, an initial context map, an optional
// starting memory, and an optional turn history.
type RunOpts struct {
	Ctx         *value.OrderedMap
	Memory      *value.OrderedMap
	TurnHistory [3]value.Value
	SandboxOpts SandboxDefaults

	// Upstream, when set, is a prior Step this mission chains from. A failed
	// upstream short-circuits the run with chained_failure before any LLM
	// call is made.
	Upstream *Step

	// Collector receives state-transition events for this mission, if set.
	// It is never used by the core to make decisions — purely observational.
	Collector TraceCollector
}

// SandboxDefaults carries the per-program limits applied to every turn's
// evaluation, threaded through from config.SandboxConfig.
type SandboxDefaults struct {
	Timeout            time.Duration
	HeapCeilingBytes   int64
	LoopLimit          int
	PrintCharBudget    int
	PmapTimeout        time.Duration
	PmapMaxConcurrency int
}

// TraceEntry records one turn for post-hoc inspection.
type TraceEntry struct {
	TurnIndex     int
	RawResponse   string
	ExtractedCode string
	Return        value.Value
	Sentinel      string
	FailReason    string
	FailMessage   string
	Prints        []string
	ToolCalls     []types.ToolCall
	Err           error
}

// Usage accumulates token/turn accounting across a mission.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Turns        int
	DurationMS   int64

	// MemoryBytes is the largest peak-heap-growth figure any turn's sandbox
	// reported.
	MemoryBytes int64
}

// Step is the terminal structured result of a mission run.
type Step struct {
	MissionID    string
	Return       value.Value
	Fail         *FailInfo
	Memory       *value.OrderedMap
	MemoryDelta  *value.OrderedMap
	SignatureStr string
	Usage        Usage
	Turns        int
	Trace        []TraceEntry
}

// FailInfo is the structured failure payload.
type FailInfo struct {
	Reason  string
	Message string
	Details map[string]any
}

// State names the SubAgent loop's state machine: Idle -> Assembling ->
// Awaiting-LLM -> Extracting -> Evaluating -> (Continue | Done-OK |
// Done-Fail).
type State string

const (
	StateAssembling  State = "Assembling"
	StateAwaitingLLM State = "Awaiting-LLM"
	StateExtracting  State = "Extracting"
	StateEvaluating  State = "Evaluating"
	StateContinue    State = "Continue"
	StateDoneOK      State = "Done-OK"
	StateDoneFail    State = "Done-Fail"
)

// TraceEvent is one state-transition notification emitted to a
// TraceCollector. The core never persists these itself; a collector is
// always an external out-of-band sink.
type TraceEvent struct {
	MissionID string
	TurnIndex int
	State     State
	Detail    string
}

// TraceCollector is the narrow interface a caller implements to subscribe
// to a mission's state transitions. nil is a valid, no-op collector.
type TraceCollector interface {
	Emit(event TraceEvent)
}

type noopCollector struct{}

func (noopCollector) Emit(TraceEvent) {}

func collectorOrNoop(c TraceCollector) TraceCollector {
	if c == nil {
		return noopCollector{}
	}
	return c
}
