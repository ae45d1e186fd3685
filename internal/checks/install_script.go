package checks

import (
	"context"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// InstallScriptCheck flags packages that declare an install/postinstall
// hook. Runs arbitrary code at install time without the caller ever
// importing the package, so it's treated as a high-severity finding.
// An "unknown" tri-state is skipped silently, not treated as true.
type InstallScriptCheck struct{}

func (c *InstallScriptCheck) ID() core.CheckID { return "install-script" }
func (c *InstallScriptCheck) Description() string {
	return "flags packages that declare an install/postinstall hook"
}
func (c *InstallScriptCheck) Priority() int              { return defaultPriority }
func (c *InstallScriptCheck) RunsOnMissingPackage() bool { return false }
func (c *InstallScriptCheck) RunsOnMissingVersion() bool { return true }
func (c *InstallScriptCheck) NeedsWeeklyDownloads() bool { return false }
func (c *InstallScriptCheck) NeedsAdvisories() bool      { return false }

func (c *InstallScriptCheck) Run(ctx context.Context, ectx *ExecutionContext) ([]core.Finding, error) {
	if ectx.Metadata == nil || ectx.Metadata.HasInstallScript != core.True {
		return nil, nil
	}
	return []core.Finding{{
		CheckID:  string(c.ID()),
		Severity: core.SeverityHigh,
		Message:  "package declares install/postinstall hook",
	}}, nil
}
