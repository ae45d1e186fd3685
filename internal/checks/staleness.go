package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/config"
	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// StalenessCheck compares the requested version against the registry's
// latest and flags a major/minor gap or an old release, per §4.5.
// Emits at most one finding, chosen by the first satisfied rule.
type StalenessCheck struct{}

func (c *StalenessCheck) ID() core.CheckID { return "staleness" }
func (c *StalenessCheck) Description() string {
	return "flags versions that are many releases or a long time behind latest"
}
func (c *StalenessCheck) Priority() int              { return defaultPriority }
func (c *StalenessCheck) RunsOnMissingPackage() bool { return false }
func (c *StalenessCheck) RunsOnMissingVersion() bool { return false }
func (c *StalenessCheck) NeedsWeeklyDownloads() bool { return false }
func (c *StalenessCheck) NeedsAdvisories() bool      { return false }

func (c *StalenessCheck) Run(ctx context.Context, ectx *ExecutionContext) ([]core.Finding, error) {
	meta := ectx.Metadata
	if meta == nil {
		return nil, nil
	}

	requested := ectx.Ref.Version
	if requested == "" {
		requested = meta.LatestVersion
	}

	if config.MatchAny(ectx.Config.Staleness.IgnoreFor, ectx.Ref.Name, requested) {
		return nil, nil
	}

	if majorBehind, minorBehind, sameMajor, ok := versionGap(requested, meta.LatestVersion); ok {
		if majorBehind >= ectx.Config.Staleness.WarnMajorVersionsBehind {
			return c.finding(core.SeverityMedium, fmt.Sprintf(
				"%s@%s is %d major version(s) behind latest %s", ectx.Ref.Name, requested, majorBehind, meta.LatestVersion)), nil
		}
		if sameMajor && minorBehind >= ectx.Config.Staleness.WarnMinorVersionsBehind {
			return c.finding(core.SeverityLow, fmt.Sprintf(
				"%s@%s is %d minor version(s) behind latest %s", ectx.Ref.Name, requested, minorBehind, meta.LatestVersion)), nil
		}
	}

	if !meta.PublishedAt.IsZero() {
		age := ectx.Now.Sub(meta.PublishedAt)
		warnAge := time.Duration(ectx.Config.Staleness.WarnAgeDays) * 24 * time.Hour
		if age >= warnAge {
			return c.finding(core.SeverityLow, fmt.Sprintf(
				"%s@%s was released %d day(s) ago", ectx.Ref.Name, requested, int(age.Hours()/24))), nil
		}
	}

	return nil, nil
}

func (c *StalenessCheck) finding(severity core.Severity, message string) []core.Finding {
	return []core.Finding{{CheckID: string(c.ID()), Severity: severity, Message: message}}
}
