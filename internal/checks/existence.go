package checks

import (
	"context"
	"fmt"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// ExistenceCheck fires when the registry reports the package doesn't
// exist. The orchestrator always runs it first, sequentially, and
// short-circuits every other check on a critical finding (§4.6 step 5).
type ExistenceCheck struct{}

func (c *ExistenceCheck) ID() core.CheckID { return "existence" }
func (c *ExistenceCheck) Description() string {
	return "reports packages the registry does not know about"
}
func (c *ExistenceCheck) Priority() int              { return 0 }
func (c *ExistenceCheck) RunsOnMissingPackage() bool { return true }
func (c *ExistenceCheck) RunsOnMissingVersion() bool { return true }
func (c *ExistenceCheck) NeedsWeeklyDownloads() bool { return false }
func (c *ExistenceCheck) NeedsAdvisories() bool      { return false }

func (c *ExistenceCheck) Run(ctx context.Context, ectx *ExecutionContext) ([]core.Finding, error) {
	if ectx.Metadata == nil || ectx.Metadata.Exists {
		return nil, nil
	}
	return []core.Finding{{
		CheckID:  string(c.ID()),
		Severity: core.SeverityCritical,
		Message:  fmt.Sprintf("package %s not found in %s", ectx.Ref.Name, ectx.Ref.Registry),
	}}, nil
}
