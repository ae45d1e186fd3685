package checks

import (
	"context"
	"fmt"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// PopularityCheck flags packages below the configured weekly-download
// floor. Requires WeeklyDownloads; skips silently when the registry
// can't report it.
type PopularityCheck struct{}

func (c *PopularityCheck) ID() core.CheckID          { return "popularity" }
func (c *PopularityCheck) Description() string       { return "flags packages with very low weekly download counts" }
func (c *PopularityCheck) Priority() int              { return defaultPriority }
func (c *PopularityCheck) RunsOnMissingPackage() bool { return false }
func (c *PopularityCheck) RunsOnMissingVersion() bool { return true }
func (c *PopularityCheck) NeedsWeeklyDownloads() bool { return true }
func (c *PopularityCheck) NeedsAdvisories() bool      { return false }

func (c *PopularityCheck) Run(ctx context.Context, ectx *ExecutionContext) ([]core.Finding, error) {
	if ectx.Metadata == nil || ectx.Metadata.WeeklyDownloads == nil {
		return nil, nil
	}

	downloads := *ectx.Metadata.WeeklyDownloads
	if downloads >= int64(ectx.Config.MinWeeklyDownloads) {
		return nil, nil
	}

	return []core.Finding{{
		CheckID:  string(c.ID()),
		Severity: core.SeverityMedium,
		Message: fmt.Sprintf("%s has only %d weekly download(s) (< %d)", ectx.Ref.Name, downloads,
			ectx.Config.MinWeeklyDownloads),
	}}, nil
}
