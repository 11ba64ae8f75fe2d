// Package config holds runtime configuration for the PTC-Lisp runtime:
// sandbox limits, SubAgent budgets, LLM retry policy, and logging — loaded
// from an optional YAML file and overridable in code.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all PTC-Lisp runtime configuration.
type Config struct {
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	SubAgent SubAgentConfig `yaml:"subagent"`
	LLM      LLMConfig      `yaml:"llm"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SandboxConfig bounds a single program execution (C6).
type SandboxConfig struct {
	// TimeoutMS is the wall-clock budget for one program evaluation.
	TimeoutMS int `yaml:"timeout_ms"`

	// HeapCeilingBytes is the machine-independent heap cap; exceeding it
	// aborts the worker with memory_exceeded.
	HeapCeilingBytes int64 `yaml:"heap_ceiling_bytes"`

	// LoopLimitDefault is the per-execution call-site iteration ceiling
	// applied unless a program execution overrides it.
	LoopLimitDefault int `yaml:"loop_limit_default"`

	// LoopLimitMax is the hard maximum a caller may configure.
	LoopLimitMax int `yaml:"loop_limit_max"`

	// PmapTimeoutMS bounds each pmap worker item.
	PmapTimeoutMS int `yaml:"pmap_timeout_ms"`

	// PmapMaxConcurrency bounds in-flight pmap workers.
	PmapMaxConcurrency int `yaml:"pmap_max_concurrency"`

	// PrintCharBudget bounds per-call println/print output before an
	// ellipsis is emitted.
	PrintCharBudget int `yaml:"print_char_budget"`
}

// MemoryStrategy controls what happens on a memory_exceeded breach.
type MemoryStrategy string

const (
	MemoryStrategyStrict   MemoryStrategy = "strict"
	MemoryStrategyRollback MemoryStrategy = "rollback"
)

// SubAgentConfig bounds the SubAgent LLM<->runtime loop (C8).
type SubAgentConfig struct {
	MaxTurns         int            `yaml:"max_turns"`
	RetryTurns       int            `yaml:"retry_turns"`
	MissionTimeoutMS int            `yaml:"mission_timeout_ms"`
	TurnBudget       int            `yaml:"turn_budget"`
	FloatPrecision   *int           `yaml:"float_precision"`
	MemoryStrategy   MemoryStrategy `yaml:"memory_strategy"`
	DataSampleChars  int            `yaml:"data_sample_chars"`
}

// LLMRetryConfig controls backoff for transient LLMCallback errors.
type LLMRetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	InitialDelayMS int     `yaml:"initial_delay_ms"`
	BackoffFactor  float64 `yaml:"backoff_factor"`
	MaxDelayMS     int     `yaml:"max_delay_ms"`
}

// LLMConfig names the opaque vendor adapter; the core never reads these
// fields except to pass Timeout/Retry through to LLMCallback implementations.
type LLMConfig struct {
	Provider string         `yaml:"provider"`
	Model    string         `yaml:"model"`
	BaseURL  string         `yaml:"base_url"`
	Timeout  string         `yaml:"timeout"`
	Retry    LLMRetryConfig `yaml:"retry"`
}

// LoggingConfig mirrors internal/logging's on-disk shape.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() *Config {
	precision := 2
	return &Config{
		Sandbox: SandboxConfig{
			TimeoutMS:          1000,
			HeapCeilingBytes:   10 * 1024 * 1024,
			LoopLimitDefault:   1000,
			LoopLimitMax:       10000,
			PmapTimeoutMS:      5000,
			PmapMaxConcurrency: 8,
			PrintCharBudget:    4000,
		},
		SubAgent: SubAgentConfig{
			MaxTurns:         8,
			RetryTurns:       2,
			MissionTimeoutMS: 120000,
			TurnBudget:       0,
			FloatPrecision:   &precision,
			MemoryStrategy:   MemoryStrategyStrict,
			DataSampleChars:  120,
		},
		LLM: LLMConfig{
			Provider: "opaque",
			Timeout:  "30s",
			Retry: LLMRetryConfig{
				MaxAttempts:    3,
				InitialDelayMS: 250,
				BackoffFactor:  2.0,
				MaxDelayMS:     4000,
			},
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads a YAML config file, applying it on top of DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Timeout parses SandboxConfig.TimeoutMS as a time.Duration.
func (s SandboxConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// PmapTimeout parses SandboxConfig.PmapTimeoutMS as a time.Duration.
func (s SandboxConfig) PmapTimeout() time.Duration {
	return time.Duration(s.PmapTimeoutMS) * time.Millisecond
}

// MissionTimeout parses SubAgentConfig.MissionTimeoutMS as a time.Duration.
func (s SubAgentConfig) MissionTimeout() time.Duration {
	if s.MissionTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(s.MissionTimeoutMS) * time.Millisecond
}

// Validate checks the config for internally-consistent values.
func (c *Config) Validate() error {
	if c.Sandbox.TimeoutMS <= 0 {
		return fmt.Errorf("sandbox.timeout_ms must be > 0")
	}
	if c.Sandbox.HeapCeilingBytes <= 0 {
		return fmt.Errorf("sandbox.heap_ceiling_bytes must be > 0")
	}
	if c.Sandbox.LoopLimitDefault <= 0 || c.Sandbox.LoopLimitDefault > c.Sandbox.LoopLimitMax {
		return fmt.Errorf("sandbox.loop_limit_default must be in (0, loop_limit_max]")
	}
	if c.Sandbox.LoopLimitMax > 10000 {
		return fmt.Errorf("sandbox.loop_limit_max must be <= 10000")
	}
	if c.SubAgent.MaxTurns < 1 {
		return fmt.Errorf("subagent.max_turns must be >= 1")
	}
	if c.SubAgent.RetryTurns < 0 || c.SubAgent.RetryTurns >= c.SubAgent.MaxTurns {
		return fmt.Errorf("subagent.retry_turns must be in [0, max_turns)")
	}
	return nil
}
