package checks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/config"
	"github.com/git-pkgs/safe-pkgs/internal/core"
)

func testConfig() *config.Config {
	return config.Defaults()
}

func TestExistenceCheck(t *testing.T) {
	check := &ExistenceCheck{}
	ectx := &ExecutionContext{
		Ref:      core.PackageRef{Registry: "npm", Name: "left-pad", Version: "1.0.0"},
		Metadata: &core.PackageMetadata{Exists: false},
		Config:   testConfig(),
		Now:      time.Now(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != core.SeverityCritical {
		t.Fatalf("findings = %+v, want one critical finding", findings)
	}
}

func TestExistenceCheck_ExistingPackage(t *testing.T) {
	check := &ExistenceCheck{}
	ectx := &ExecutionContext{
		Metadata: &core.PackageMetadata{Exists: true},
		Config:   testConfig(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil || len(findings) != 0 {
		t.Fatalf("findings = %+v, err = %v, want none", findings, err)
	}
}

func TestVersionAgeCheck_BelowThreshold(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	check := &VersionAgeCheck{}
	ectx := &ExecutionContext{
		Ref:      core.PackageRef{Name: "new-pkg", Version: "0.1.0"},
		Metadata: &core.PackageMetadata{PublishedAt: now.Add(-24 * time.Hour)},
		Config:   testConfig(),
		Now:      now,
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != core.SeverityMedium {
		t.Fatalf("findings = %+v, want one medium finding", findings)
	}
}

func TestVersionAgeCheck_ExactlyAtThresholdNotFlagged(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	cfg := testConfig()
	check := &VersionAgeCheck{}
	ectx := &ExecutionContext{
		Ref:      core.PackageRef{Name: "pkg", Version: "1.0.0"},
		Metadata: &core.PackageMetadata{PublishedAt: now.Add(-time.Duration(cfg.MinVersionAgeDays) * 24 * time.Hour)},
		Config:   cfg,
		Now:      now,
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil || len(findings) != 0 {
		t.Fatalf("findings = %+v, err = %v, want none at exact threshold", findings, err)
	}
}

func TestVersionAgeCheck_UnknownPublishedAtSkips(t *testing.T) {
	check := &VersionAgeCheck{}
	ectx := &ExecutionContext{Metadata: &core.PackageMetadata{}, Config: testConfig(), Now: time.Now()}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil || len(findings) != 0 {
		t.Fatalf("findings = %+v, err = %v, want none", findings, err)
	}
}

func TestStalenessCheck_MajorBehind(t *testing.T) {
	check := &StalenessCheck{}
	ectx := &ExecutionContext{
		Ref:      core.PackageRef{Name: "request", Version: "2.0.0", Registry: "npm"},
		Metadata: &core.PackageMetadata{LatestVersion: "4.17.21"},
		Config:   testConfig(),
		Now:      time.Now(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != core.SeverityMedium {
		t.Fatalf("findings = %+v, want one medium finding", findings)
	}
}

func TestStalenessCheck_NonSemverUsesLexicographicFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Staleness.WarnMajorVersionsBehind = 1
	check := &StalenessCheck{}
	ectx := &ExecutionContext{
		Ref:      core.PackageRef{Name: "request", Version: "2024.1.old", Registry: "pypi"},
		Metadata: &core.PackageMetadata{LatestVersion: "2024.2.new"},
		Config:   cfg,
		Now:      time.Now(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != core.SeverityMedium {
		t.Fatalf("findings = %+v, want one medium finding from the non-semver fallback", findings)
	}
}

func TestStalenessCheck_IgnoreFor(t *testing.T) {
	cfg := testConfig()
	cfg.Staleness.IgnoreFor = []string{"request"}
	check := &StalenessCheck{}
	ectx := &ExecutionContext{
		Ref:      core.PackageRef{Name: "request", Version: "2.0.0"},
		Metadata: &core.PackageMetadata{LatestVersion: "4.17.21"},
		Config:   cfg,
		Now:      time.Now(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil || len(findings) != 0 {
		t.Fatalf("findings = %+v, err = %v, want none (ignored)", findings, err)
	}
}

func TestTyposquatCheck_OneEditDistance(t *testing.T) {
	check := &TyposquatCheck{}
	ectx := &ExecutionContext{
		Ref:    core.PackageRef{Name: "reqeusts", Registry: "pypi"},
		Config: testConfig(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != core.SeverityHigh {
		t.Fatalf("findings = %+v, want one high finding for a one-edit typosquat", findings)
	}
}

func TestTyposquatCheck_ExactMatchNoFinding(t *testing.T) {
	check := &TyposquatCheck{}
	ectx := &ExecutionContext{
		Ref:    core.PackageRef{Name: "requests", Registry: "pypi"},
		Config: testConfig(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil || len(findings) != 0 {
		t.Fatalf("findings = %+v, err = %v, want none for exact match", findings, err)
	}
}

func TestPopularityCheck_BelowThreshold(t *testing.T) {
	downloads := int64(10)
	check := &PopularityCheck{}
	ectx := &ExecutionContext{
		Ref:      core.PackageRef{Name: "new-pkg"},
		Metadata: &core.PackageMetadata{WeeklyDownloads: &downloads},
		Config:   testConfig(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != core.SeverityMedium {
		t.Fatalf("findings = %+v, want one medium finding", findings)
	}
}

func TestPopularityCheck_NoDataSkips(t *testing.T) {
	check := &PopularityCheck{}
	ectx := &ExecutionContext{Metadata: &core.PackageMetadata{}, Config: testConfig()}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil || len(findings) != 0 {
		t.Fatalf("findings = %+v, err = %v, want none", findings, err)
	}
}

func TestInstallScriptCheck_True(t *testing.T) {
	check := &InstallScriptCheck{}
	ectx := &ExecutionContext{Metadata: &core.PackageMetadata{HasInstallScript: core.True}, Config: testConfig()}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != core.SeverityHigh {
		t.Fatalf("findings = %+v, want one high finding", findings)
	}
}

func TestInstallScriptCheck_UnknownSkipsSilently(t *testing.T) {
	check := &InstallScriptCheck{}
	ectx := &ExecutionContext{Metadata: &core.PackageMetadata{HasInstallScript: core.Unknown}, Config: testConfig()}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil || len(findings) != 0 {
		t.Fatalf("findings = %+v, err = %v, want none", findings, err)
	}
}

type fakeAdvisoryProvider struct {
	advisories []core.Advisory
	err        error
}

func (f *fakeAdvisoryProvider) FetchAdvisories(ctx context.Context, registry, name, version string) ([]core.Advisory, error) {
	return f.advisories, f.err
}

func TestAdvisoryCheck_EmptyListNoFindings(t *testing.T) {
	check := &AdvisoryCheck{}
	ectx := &ExecutionContext{
		Ref:              core.PackageRef{Name: "pkg", Version: "1.0.0"},
		AdvisoryProvider: &fakeAdvisoryProvider{},
		Config:           testConfig(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil || len(findings) != 0 {
		t.Fatalf("findings = %+v, err = %v, want none", findings, err)
	}
}

func TestAdvisoryCheck_FindingsBySeverity(t *testing.T) {
	check := &AdvisoryCheck{}
	ectx := &ExecutionContext{
		Ref: core.PackageRef{Name: "pkg", Version: "1.0.0"},
		AdvisoryProvider: &fakeAdvisoryProvider{advisories: []core.Advisory{
			{ID: "GHSA-xxxx", Severity: core.SeverityCritical, Summary: "remote code execution"},
		}},
		Config: testConfig(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != core.SeverityCritical {
		t.Fatalf("findings = %+v, want one critical finding", findings)
	}
}

func TestAdvisoryCheck_ProviderErrorBecomesHighFinding(t *testing.T) {
	check := &AdvisoryCheck{}
	ectx := &ExecutionContext{
		Ref:              core.PackageRef{Name: "pkg", Version: "1.0.0"},
		AdvisoryProvider: &fakeAdvisoryProvider{err: errors.New("rate limited")},
		Config:           testConfig(),
	}
	findings, err := check.Run(context.Background(), ectx)
	if err != nil {
		t.Fatalf("Run should not return an error on provider failure: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != core.SeverityHigh {
		t.Fatalf("findings = %+v, want one high finding", findings)
	}
}

func TestSorted_OrdersByPriorityThenID(t *testing.T) {
	sorted := Sorted(All())
	if sorted[0].ID() != "existence" {
		t.Errorf("first check = %q, want existence (priority 0)", sorted[0].ID())
	}
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Priority() > cur.Priority() {
			t.Errorf("checks not sorted by priority: %q (%d) before %q (%d)", prev.ID(), prev.Priority(), cur.ID(), cur.Priority())
		}
		if prev.Priority() == cur.Priority() && prev.ID() > cur.ID() {
			t.Errorf("checks with equal priority not sorted by id: %q before %q", prev.ID(), cur.ID())
		}
	}
}

func TestDamerauLevenshtein_Transposition(t *testing.T) {
	if d := damerauLevenshtein("reqeusts", "requests"); d != 1 {
		t.Errorf("damerauLevenshtein(reqeusts, requests) = %d, want 1", d)
	}
}
