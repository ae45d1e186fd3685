package cmd

import (
	"github.com/spf13/cobra"

	"github.com/git-pkgs/safe-pkgs/internal/core"
	"github.com/git-pkgs/safe-pkgs/internal/lockfile"
)

var auditRegistry string

var auditCmd = &cobra.Command{
	Use:   "audit <path>",
	Short: "Expand a project manifest/lockfile and evaluate every declared package",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditRegistry, "registry", "npm", "registry that owns this manifest format")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	refs, err := lockfile.Expand(orch.Client, auditRegistry, args[0])
	if err != nil {
		// §7: a malformed/unsupported lockfile aborts the expansion with
		// a single fail-closed decision, not a process-level error.
		if jsonErr := printJSON([]auditResult{{
			Package: args[0],
			Decision: &core.Decision{
				Allow:   false,
				Risk:    core.RiskCritical,
				Reasons: []string{err.Error()},
			},
		}}); jsonErr != nil {
			return jsonErr
		}
		return errDenied
	}

	decisions, errs := orch.EvaluateAll(cmd.Context(), refs, cfg)

	results := make([]auditResult, len(refs))
	allAllowed := true
	for i, ref := range refs {
		results[i] = auditResult{Package: ref.Name, Version: ref.Version}
		if errs[i] != nil {
			results[i].Error = errs[i].Error()
			allAllowed = false
			continue
		}
		results[i].Decision = &decisions[i]
		if !decisions[i].Allow {
			allAllowed = false
		}
	}

	if err := printJSON(results); err != nil {
		return err
	}
	if !allAllowed {
		return errDenied
	}
	return nil
}

type auditResult struct {
	Package  string         `json:"package"`
	Version  string         `json:"version,omitempty"`
	Decision *core.Decision `json:"decision,omitempty"`
	Error    string         `json:"error,omitempty"`
}
