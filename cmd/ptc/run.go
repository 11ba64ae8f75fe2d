package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ptc-lisp/pkg/analyzer"
	"ptc-lisp/pkg/reader"
	"ptc-lisp/pkg/sandbox"
	"ptc-lisp/pkg/value"
)

var (
	runCtxPath    string
	runMemoryPath string
)

var runCmd = &cobra.Command{
	Use:   "run <file.lisp>",
	Short: "Parse, analyze, and evaluate a PTC-Lisp program file once",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runCtxPath, "ctx", "", "path to a JSON file supplying ctx/* entries")
	runCmd.Flags().StringVar(&runMemoryPath, "memory", "", "path to a JSON file supplying the starting memory map")
}

func runRun(cmd *cobra.Command, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read program: %w", err)
	}

	ctx, err := loadJSONMap(runCtxPath)
	if err != nil {
		return fmt.Errorf("load ctx: %w", err)
	}
	memory, err := loadJSONMap(runMemoryPath)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}

	forms, err := reader.ParseAll(string(src))
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	nodes, err := analyzer.New().AnalyzeProgram(forms)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	res, err := sandbox.Run(context.Background(), sandbox.Request{
		Nodes:  nodes,
		Ctx:    ctx,
		Memory: memory,
		Opts: sandbox.Opts{
			Timeout:          cfg.Sandbox.Timeout(),
			HeapCeilingBytes: cfg.Sandbox.HeapCeilingBytes,
			Eval:             lispOptsFromConfig(),
		},
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	out := map[string]any{
		"return":        value.ToJSON(res.Return),
		"sentinel":      res.Sentinel,
		"memory":        value.ToJSON(value.Map(res.Memory)),
		"memory_delta":  value.ToJSON(value.Map(res.MemoryDelta)),
		"prints":        res.Prints,
		"iterations":    res.Metrics.Iterations,
		"wall_clock_ms": res.Metrics.WallClock.Milliseconds(),
	}
	if res.Sentinel == "fail" {
		out["fail_reason"] = res.FailReason
		out["fail_message"] = res.FailMessage
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadJSONMap(path string) (*value.OrderedMap, error) {
	if path == "" {
		return value.NewOrderedMap(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := value.ParseJSON(data)
	if err != nil {
		return nil, err
	}
	if v.Kind != value.KindMap {
		return nil, fmt.Errorf("%s must contain a JSON object", path)
	}
	return v.Map, nil
}
