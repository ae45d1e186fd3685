package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// VersionAgeCheck flags versions published more recently than the
// configured minimum age. Requires PublishedAt; skips silently when the
// registry couldn't report it.
type VersionAgeCheck struct{}

func (c *VersionAgeCheck) ID() core.CheckID { return "version-age" }
func (c *VersionAgeCheck) Description() string {
	return "flags versions published more recently than the configured minimum age"
}
func (c *VersionAgeCheck) Priority() int              { return defaultPriority }
func (c *VersionAgeCheck) RunsOnMissingPackage() bool { return false }
func (c *VersionAgeCheck) RunsOnMissingVersion() bool { return false }
func (c *VersionAgeCheck) NeedsWeeklyDownloads() bool { return false }
func (c *VersionAgeCheck) NeedsAdvisories() bool      { return false }

func (c *VersionAgeCheck) Run(ctx context.Context, ectx *ExecutionContext) ([]core.Finding, error) {
	if ectx.Metadata == nil || ectx.Metadata.PublishedAt.IsZero() {
		return nil, nil
	}

	minAge := time.Duration(ectx.Config.MinVersionAgeDays) * 24 * time.Hour
	age := ectx.Now.Sub(ectx.Metadata.PublishedAt)
	if age >= minAge {
		return nil, nil
	}

	version := displayVersion(ectx)
	days := int(age.Hours() / 24)
	return []core.Finding{{
		CheckID:  string(c.ID()),
		Severity: core.SeverityMedium,
		Message: fmt.Sprintf("%s@%s is %d day(s) old (< %d)", ectx.Ref.Name, version,
			days, ectx.Config.MinVersionAgeDays),
	}}, nil
}

// displayVersion returns the version a finding message should name:
// the requested version if one was given, otherwise the resolved
// latest version.
func displayVersion(ectx *ExecutionContext) string {
	if ectx.Ref.Version != "" {
		return ectx.Ref.Version
	}
	if ectx.Metadata != nil {
		return ectx.Metadata.LatestVersion
	}
	return ""
}
