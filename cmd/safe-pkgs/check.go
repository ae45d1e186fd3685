package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

var checkRegistry string

var checkCmd = &cobra.Command{
	Use:   "check <name> [version]",
	Short: "Evaluate a single package (and optional version) against the configured safety checks",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkRegistry, "registry", "npm", "registry to evaluate against")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ref := core.PackageRef{Registry: checkRegistry, Name: args[0]}
	if len(args) == 2 {
		ref.Version = args[1]
	}

	decision, err := orch.Evaluate(cmd.Context(), ref, cfg)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", args[0], err)
	}

	if err := printJSON(decision); err != nil {
		return err
	}
	if !decision.Allow {
		return errDenied
	}
	return nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
