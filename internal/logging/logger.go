// Package logging provides config-driven, categorized file-based logging for
// the PTC-Lisp runtime. Logs are written to .ptc/logs/ with one file per
// category; logging is controlled by debug_mode in .ptc/config.yaml — when
// false, nothing is written and every call is a no-op.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ptc-lisp/internal/config"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryReader   Category = "reader"   // Lexer/parser (C2)
	CategoryAnalyzer Category = "analyzer" // Static analysis (C3)
	CategoryEval     Category = "eval"     // Evaluator (C4)
	CategorySandbox  Category = "sandbox"  // Isolated worker execution (C6)
	CategorySubAgent Category = "subagent" // Turn loop (C8)
	CategoryLLM      Category = "llm"      // LLMCallback invocations
	CategoryTool     Category = "tool"     // tool/... invocations
)

// Entry is a structured log record, useful when a downstream tool wants to
// grep the log files as JSON instead of the default human-readable text.
type Entry struct {
	Timestamp int64                  `json:"ts"`
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger writes to a single category's log file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	workspace string
	cfg       config.LoggingConfig
	configMu  sync.RWMutex
	logLevel  = LevelInfo
)

// Initialize sets up the logs directory for a workspace and applies the
// already-loaded runtime config's Logging section. Call once at startup,
// after config.Load, with that Config's Logging field; safe to call with an
// empty workspace in tests, in which case logging stays a no-op.
func Initialize(ws string, logCfg config.LoggingConfig) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}
	workspace = ws
	logsDir = filepath.Join(workspace, ".ptc", "logs")

	configMu.Lock()
	cfg = logCfg
	switch cfg.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	configMu.Unlock()

	if !cfg.DebugMode {
		return nil
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategorySubAgent)
	boot.Info("logging initialized, workspace=%s debug=%v level=%s", workspace, cfg.DebugMode, cfg.Level)
	return nil
}

// IsDebugMode reports whether file logging is currently enabled.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return cfg.DebugMode
}

// IsCategoryEnabled reports whether a category should log under the current config.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()
	if !cfg.DebugMode {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or lazily creates) the logger for a category. Returns a
// no-op logger when the category or debug mode is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] warning: could not open %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) logJSON(level, msg string, fields map[string]interface{}) {
	entry := Entry{Timestamp: time.Now().UnixMilli(), Category: string(l.category), Level: level, Message: msg, Fields: fields}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) Debug(format string, args ...interface{}) { l.emit(LevelDebug, "DEBUG", format, args) }
func (l *Logger) Info(format string, args ...interface{})  { l.emit(LevelInfo, "INFO", format, args) }
func (l *Logger) Warn(format string, args ...interface{})  { l.emit(LevelWarn, "WARN", format, args) }

// Error always logs, regardless of the configured level floor.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if cfg.JSONFormat {
		l.logJSON("error", msg, nil)
		return
	}
	l.logger.Printf("[ERROR] %s", msg)
}

func (l *Logger) emit(floor int, label, format string, args []interface{}) {
	if l.logger == nil || logLevel > floor {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if cfg.JSONFormat {
		l.logJSON(label, msg, nil)
		return
	}
	l.logger.Printf("[%s] %s", label, msg)
}

// WithFields logs one structured entry carrying extra key/value context.
func (l *Logger) WithFields(level string, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	if cfg.JSONFormat {
		l.logJSON(level, msg, fields)
		return
	}
	l.logger.Printf("[%s] %s | fields=%v", level, msg, fields)
}

// CloseAll closes every open log file. Call at process shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Reader, Analyzer, Eval, Sandbox, SubAgent, LLM, Tool are convenience
// shorthands for Get(Category...).Info, mirroring the one-liner helpers a
// frequently logged category accumulates over time.

func Reader(format string, args ...interface{})   { Get(CategoryReader).Info(format, args...) }
func Analyzer(format string, args ...interface{}) { Get(CategoryAnalyzer).Info(format, args...) }
func Eval(format string, args ...interface{})     { Get(CategoryEval).Info(format, args...) }
func Sandbox(format string, args ...interface{})  { Get(CategorySandbox).Info(format, args...) }
func SubAgent(format string, args ...interface{}) { Get(CategorySubAgent).Info(format, args...) }
func LLM(format string, args ...interface{})      { Get(CategoryLLM).Info(format, args...) }
func Tool(format string, args ...interface{})     { Get(CategoryTool).Info(format, args...) }
