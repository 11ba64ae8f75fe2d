package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ptc-lisp/pkg/signature"
	"ptc-lisp/pkg/value"
)

var validateSigValuePath string

var validateSigCmd = &cobra.Command{
	Use:   "validate-sig <signature>",
	Short: "Validate a JSON value against a signature string",
	Long: `validate-sig parses a signature string (primitives, [T] seqs, #{T}
sets, {k T, ...} records, T? optionals, (p T) -> R functions) and
validates a JSON-decoded value, read from --value, against it.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidateSig,
}

func init() {
	validateSigCmd.Flags().StringVar(&validateSigValuePath, "value", "", "path to a JSON file holding the value to validate (required)")
	validateSigCmd.MarkFlagRequired("value")
}

func runValidateSig(cmd *cobra.Command, args []string) error {
	sig, err := signature.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}

	data, err := os.ReadFile(validateSigValuePath)
	if err != nil {
		return fmt.Errorf("read value: %w", err)
	}
	v, err := value.ParseJSON(data)
	if err != nil {
		return fmt.Errorf("parse value: %w", err)
	}

	out := map[string]any{"signature": signature.Describe(sig)}
	if verr := signature.Validate(sig, v, "value"); verr != nil {
		out["valid"] = false
		out["error"] = verr.Error()
	} else {
		out["valid"] = true
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if out["valid"] == false {
		os.Exit(1)
	}
	return nil
}
