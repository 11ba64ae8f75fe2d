package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ptc-lisp/internal/llm"
	"ptc-lisp/internal/subagent"
	"ptc-lisp/pkg/signature"
	"ptc-lisp/pkg/value"
)

var (
	missionCtxPath      string
	missionScriptPath   string
	missionSignatureStr string
	missionMaxTurns     int
	missionSystemPrompt string
	missionTrace        bool
)

// zapTraceCollector logs every SubAgent state transition through the CLI's
// zap console logger (see opts.go), distinct from internal/logging's
// file-backed category logs used inside the core.
type zapTraceCollector struct{}

func (zapTraceCollector) Emit(ev subagent.TraceEvent) {
	logger.Sugar().Infow("subagent trace",
		"mission_id", ev.MissionID, "turn", ev.TurnIndex, "state", string(ev.State), "detail", ev.Detail)
}

var missionCmd = &cobra.Command{
	Use:   "mission <mission.txt>",
	Short: "Drive a SubAgent mission against a scripted LLM response script",
	Long: `mission reads a mission template from a file and drives the
SubAgent loop against a fixed list of scripted LLM responses (read from
--script, one JSON string per array element) rather than a live vendor
client — useful for dry-running a mission's turn sequence offline.`,
	Args: cobra.ExactArgs(1),
	RunE: runMission,
}

func init() {
	missionCmd.Flags().StringVar(&missionCtxPath, "ctx", "", "path to a JSON file supplying ctx/* entries")
	missionCmd.Flags().StringVar(&missionScriptPath, "script", "", "path to a JSON array of scripted LLM response strings (required)")
	missionCmd.Flags().StringVar(&missionSignatureStr, "signature", "", "optional signature string validating the mission's return value")
	missionCmd.Flags().IntVar(&missionMaxTurns, "max-turns", 0, "override config's subagent.max_turns (0 uses config default)")
	missionCmd.Flags().StringVar(&missionSystemPrompt, "system", "You are PTC-Lisp's SubAgent executor.", "system prompt text")
	missionCmd.Flags().BoolVar(&missionTrace, "trace", false, "log every SubAgent state transition to the console logger")
	missionCmd.MarkFlagRequired("script")
}

func runMission(cmd *cobra.Command, args []string) error {
	template, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read mission: %w", err)
	}
	ctx, err := loadJSONMap(missionCtxPath)
	if err != nil {
		return fmt.Errorf("load ctx: %w", err)
	}

	turns, err := loadScript(missionScriptPath)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	cb := llm.NewScripted(turns...)

	mission := subagent.FromConfig(cfg.SubAgent)
	mission.Template = string(template)
	if missionMaxTurns > 0 {
		mission.MaxTurns = missionMaxTurns
	}
	if missionSignatureStr != "" {
		sig, err := signature.Parse(missionSignatureStr)
		if err != nil {
			return fmt.Errorf("parse signature: %w", err)
		}
		mission.Signature = sig
	}

	retry := subagent.RetryPolicy{
		MaxAttempts:   cfg.LLM.Retry.MaxAttempts,
		InitialDelay:  msToDuration(cfg.LLM.Retry.InitialDelayMS),
		BackoffFactor: cfg.LLM.Retry.BackoffFactor,
		MaxDelay:      msToDuration(cfg.LLM.Retry.MaxDelayMS),
	}

	runOpts := subagent.RunOpts{
		Ctx:         ctx,
		SandboxOpts: sandboxDefaultsFromConfig(),
	}
	if missionTrace {
		runOpts.Collector = zapTraceCollector{}
	}
	step, err := subagent.Run(context.Background(), mission, missionSystemPrompt, cb, retry, runOpts)

	out := map[string]any{
		"mission_id": step.MissionID,
		"return":     value.ToJSON(step.Return),
		"turns":      step.Turns,
		"usage":      step.Usage,
	}
	if step.Fail != nil {
		out["fail"] = step.Fail
	}
	if err != nil {
		out["error"] = err.Error()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		return encErr
	}
	return err
}

func loadScript(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("script must be a JSON array of strings: %w", err)
	}
	turns := make([]any, len(raw))
	for i, s := range raw {
		turns[i] = s
	}
	return turns, nil
}
