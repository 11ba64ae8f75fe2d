package main

import (
	"time"

	"ptc-lisp/internal/subagent"
	"ptc-lisp/pkg/lisp"
)

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// lispOptsFromConfig builds evaluator bounds from the loaded config,
// falling back to config.DefaultConfig's values if no file was found.
func lispOptsFromConfig() lisp.Opts {
	return lisp.Opts{
		LoopLimit:          cfg.Sandbox.LoopLimitDefault,
		PrintCharBudget:    cfg.Sandbox.PrintCharBudget,
		PmapTimeout:        cfg.Sandbox.PmapTimeout(),
		PmapMaxConcurrency: cfg.Sandbox.PmapMaxConcurrency,
	}
}

func sandboxDefaultsFromConfig() subagent.SandboxDefaults {
	return subagent.SandboxDefaults{
		Timeout:            cfg.Sandbox.Timeout(),
		HeapCeilingBytes:   cfg.Sandbox.HeapCeilingBytes,
		LoopLimit:          cfg.Sandbox.LoopLimitDefault,
		PrintCharBudget:    cfg.Sandbox.PrintCharBudget,
		PmapTimeout:        cfg.Sandbox.PmapTimeout(),
		PmapMaxConcurrency: cfg.Sandbox.PmapMaxConcurrency,
	}
}
