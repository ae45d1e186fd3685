package checks

import (
	"context"
	"fmt"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// AdvisoryCheck queries the advisory provider and emits one finding per
// returned advisory, at that advisory's own severity. A provider
// failure becomes a single high-severity finding rather than aborting
// the request (§4.5).
type AdvisoryCheck struct{}

func (c *AdvisoryCheck) ID() core.CheckID              { return "advisory" }
func (c *AdvisoryCheck) Description() string           { return "reports known vulnerabilities affecting the package/version" }
func (c *AdvisoryCheck) Priority() int                  { return defaultPriority }
func (c *AdvisoryCheck) RunsOnMissingPackage() bool     { return false }
func (c *AdvisoryCheck) RunsOnMissingVersion() bool     { return true }
func (c *AdvisoryCheck) NeedsWeeklyDownloads() bool     { return false }
func (c *AdvisoryCheck) NeedsAdvisories() bool          { return true }

func (c *AdvisoryCheck) Run(ctx context.Context, ectx *ExecutionContext) ([]core.Finding, error) {
	if ectx.AdvisoryProvider == nil {
		return nil, nil
	}

	version := ectx.Ref.Version
	if version == "" && ectx.Metadata != nil {
		version = ectx.Metadata.LatestVersion
	}

	advisories, err := ectx.AdvisoryProvider.FetchAdvisories(ctx, ectx.Ref.Registry, ectx.Ref.Name, version)
	if err != nil {
		return []core.Finding{{
			CheckID:  string(c.ID()),
			Severity: core.SeverityHigh,
			Message:  fmt.Sprintf("advisory lookup for %s@%s failed: %v", ectx.Ref.Name, version, err),
		}}, nil
	}

	findings := make([]core.Finding, 0, len(advisories))
	for _, adv := range advisories {
		findings = append(findings, core.Finding{
			CheckID:  string(c.ID()),
			Severity: adv.Severity,
			Message:  fmt.Sprintf("%s: %s (%s)", adv.ID, adv.Summary, ectx.Ref.Name),
		})
	}
	return findings, nil
}
