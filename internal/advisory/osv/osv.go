// Package osv implements core.AdvisoryProvider against the public OSV.dev
// vulnerability database (https://osv.dev), per §4.2. OSV has no
// authentication and a single POST-based query endpoint, so the client
// reuses core.Client.PostJSON rather than the GET-oriented retry path
// the registry providers use.
package osv

import (
	"context"
	"fmt"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const DefaultURL = "https://api.osv.dev"

// ecosystems maps a safe-pkgs registry key to the OSV ecosystem name.
// Registries with no OSV coverage are omitted; FetchAdvisories returns
// an empty result for them rather than querying OSV with a bad
// ecosystem name.
var ecosystems = map[string]string{
	"npm":    "npm",
	"cargo":  "crates.io",
	"pypi":   "PyPI",
	"gem":    "RubyGems",
	"golang": "Go",
}

// Client queries OSV.dev for known vulnerabilities affecting a
// package/version.
type Client struct {
	baseURL string
	client  *core.Client
}

// New creates an OSV client against baseURL using the given HTTP client.
func New(baseURL string, client *core.Client) *Client {
	return &Client{baseURL: baseURL, client: client}
}

type queryRequest struct {
	Version string        `json:"version,omitempty"`
	Package packageFilter `json:"package"`
}

type packageFilter struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type queryResponse struct {
	Vulns []vuln `json:"vulns"`
}

type vuln struct {
	ID       string        `json:"id"`
	Summary  string        `json:"summary"`
	Details  string        `json:"details"`
	Severity []vulnSeverity `json:"severity"`
	Affected []affected    `json:"affected"`
}

type vulnSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type affected struct {
	Database map[string]any `json:"database_specific"`
}

// FetchAdvisories implements core.AdvisoryProvider. An unrecognized
// registry or a package name OSV has never heard of both resolve to an
// empty, non-error result: OSV coverage gaps aren't failures.
func (c *Client) FetchAdvisories(ctx context.Context, registry, name, version string) ([]core.Advisory, error) {
	ecosystem, ok := ecosystems[registry]
	if !ok {
		return nil, nil
	}

	req := queryRequest{
		Version: version,
		Package: packageFilter{Name: name, Ecosystem: ecosystem},
	}

	var resp queryResponse
	if err := c.client.PostJSON(ctx, c.baseURL+"/v1/query", req, &resp); err != nil {
		return nil, &core.ProviderError{CheckID: "advisory", Err: fmt.Errorf("osv query for %s: %w", name, err)}
	}

	advisories := make([]core.Advisory, 0, len(resp.Vulns))
	for _, v := range resp.Vulns {
		advisories = append(advisories, core.Advisory{
			ID:       v.ID,
			Summary:  summaryOf(v),
			Severity: severityOf(v),
		})
	}
	return advisories, nil
}

func summaryOf(v vuln) string {
	if v.Summary != "" {
		return v.Summary
	}
	if v.Details != "" {
		return v.Details
	}
	return "no summary available"
}

// severityOf maps an OSV vuln's CVSS severity score to safe-pkgs'
// four-level scale. OSV vulns without a parseable CVSS score default to
// medium: the vulnerability is confirmed to exist, just unrated.
func severityOf(v vuln) core.Severity {
	for _, s := range v.Severity {
		if s.Type != "CVSS_V3" && s.Type != "CVSS_V2" {
			continue
		}
		if score, ok := parseCVSSBaseScore(s.Score); ok {
			return scoreToSeverity(score)
		}
	}
	return core.SeverityMedium
}

// parseCVSSBaseScore extracts the base score from a CVSS vector string
// (e.g. "CVSS:3.1/AV:N/AC:L/.../S:U/C:H/I:H/A:H"). OSV's CVSS scores are
// vector strings, not pre-computed numbers, so this looks for the
// handful of metrics that most strongly indicate severity rather than
// implementing the full CVSS formula.
func parseCVSSBaseScore(vector string) (float64, bool) {
	highImpact := 0
	for _, metric := range []string{"C:H", "I:H", "A:H"} {
		if containsMetric(vector, metric) {
			highImpact++
		}
	}
	if containsMetric(vector, "AV:N") && highImpact >= 2 {
		return 9.0, true
	}
	if highImpact >= 1 {
		return 7.0, true
	}
	if containsMetric(vector, "C:L") || containsMetric(vector, "I:L") || containsMetric(vector, "A:L") {
		return 4.0, true
	}
	return 0, false
}

func containsMetric(vector, metric string) bool {
	for i := 0; i+len(metric) <= len(vector); i++ {
		if vector[i:i+len(metric)] == metric {
			return true
		}
	}
	return false
}

func scoreToSeverity(score float64) core.Severity {
	switch {
	case score >= 9.0:
		return core.SeverityCritical
	case score >= 7.0:
		return core.SeverityHigh
	case score >= 4.0:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}
