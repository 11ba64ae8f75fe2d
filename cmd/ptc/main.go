// Command ptc is the PTC-Lisp CLI: run a program file directly, drive a
// SubAgent mission against a scripted callback, or validate a value
// against a signature string.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ptc-lisp/internal/config"
	"ptc-lisp/internal/logging"
)

var (
	verbose    bool
	workspace  string
	configPath string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ptc",
	Short: "PTC-Lisp: a sandboxed Lisp runtime for LLM-emitted programs",
	Long: `ptc parses, analyzes, and evaluates PTC-Lisp programs under hard
time and memory bounds, and drives the SubAgent LLM<->runtime loop.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		loaded, loadErr := config.Load(configPath)
		if loadErr != nil {
			return fmt.Errorf("load config: %w", loadErr)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws, cfg.Logging); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".ptc/config.yaml", "path to config.yaml")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(missionCmd)
	rootCmd.AddCommand(validateSigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
