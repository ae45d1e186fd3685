package cmd

import (
	"github.com/spf13/cobra"

	"github.com/git-pkgs/safe-pkgs/internal/checks"
	"github.com/git-pkgs/safe-pkgs/internal/core"
)

var supportMapCmd = &cobra.Command{
	Use:   "support-map",
	Short: "Print the registry x check support matrix",
	RunE:  runSupportMap,
}

func init() {
	rootCmd.AddCommand(supportMapCmd)
}

func runSupportMap(cmd *cobra.Command, args []string) error {
	ids := make([]core.CheckID, 0, len(checks.All()))
	for _, c := range checks.All() {
		ids = append(ids, c.ID())
	}

	matrix := core.SupportMatrix(orch.Client, ids)
	return printJSON(matrix)
}
