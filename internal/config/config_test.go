package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

func TestLoad_MissingFilesReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing-global.toml"), filepath.Join(t.TempDir(), "missing-project.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRisk != core.RiskMedium {
		t.Errorf("MaxRisk = %q, want medium", cfg.MaxRisk)
	}
	if cfg.MinVersionAgeDays != 7 {
		t.Errorf("MinVersionAgeDays = %d, want 7", cfg.MinVersionAgeDays)
	}
}

func TestProjectOverlaysGlobal(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.toml")
	projectPath := filepath.Join(dir, "project.toml")

	writeFile(t, globalPath, `
min_version_age_days = 14
max_risk = "high"

[denylist]
packages = ["evil-pkg"]
`)
	writeFile(t, projectPath, `
max_risk = "low"

[denylist]
packages = ["other-evil-pkg"]
`)

	cfg, err := Load(globalPath, projectPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRisk != core.RiskLow {
		t.Errorf("MaxRisk = %q, want low (project should override global)", cfg.MaxRisk)
	}
	if cfg.MinVersionAgeDays != 14 {
		t.Errorf("MinVersionAgeDays = %d, want 14 (unset in project, kept from global)", cfg.MinVersionAgeDays)
	}
	if len(cfg.Denylist.Packages) != 2 {
		t.Errorf("Denylist.Packages = %v, want 2 entries (global then project)", cfg.Denylist.Packages)
	}
	if cfg.Denylist.Packages[0] != "evil-pkg" || cfg.Denylist.Packages[1] != "other-evil-pkg" {
		t.Errorf("Denylist.Packages = %v, want first-seen order global then project", cfg.Denylist.Packages)
	}
}

func TestSanitize_NonPositiveResetsToDefault(t *testing.T) {
	cfg := Defaults()
	cfg.MinVersionAgeDays = 0
	cfg.MinWeeklyDownloads = -5
	cfg.Cache.TTLMinutes = -1

	Sanitize(cfg)

	if cfg.MinVersionAgeDays != 7 {
		t.Errorf("MinVersionAgeDays = %d, want reset to 7", cfg.MinVersionAgeDays)
	}
	if cfg.MinWeeklyDownloads != 50 {
		t.Errorf("MinWeeklyDownloads = %d, want reset to 50", cfg.MinWeeklyDownloads)
	}
	if cfg.Cache.TTLMinutes != 30 {
		t.Errorf("Cache.TTLMinutes = %d, want reset to 30", cfg.Cache.TTLMinutes)
	}
}

func TestSanitize_UnknownMaxRiskResetsToDefault(t *testing.T) {
	cfg := Defaults()
	cfg.MaxRisk = core.RiskLevel("extreme")

	Sanitize(cfg)

	if cfg.MaxRisk != core.RiskMedium {
		t.Errorf("MaxRisk = %q, want reset to medium", cfg.MaxRisk)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	cfg := Defaults()
	cfg.Denylist.Packages = []string{"a", "b"}

	once := Merge(cfg, &Config{})
	twice := Merge(once, &Config{})

	if len(once.Denylist.Packages) != len(twice.Denylist.Packages) {
		t.Fatalf("merge with empty config is not idempotent: %v vs %v", once.Denylist.Packages, twice.Denylist.Packages)
	}
	for i := range once.Denylist.Packages {
		if once.Denylist.Packages[i] != twice.Denylist.Packages[i] {
			t.Errorf("merge with empty config is not idempotent at index %d", i)
		}
	}
}

func TestDedupPreservesFirstSeenOrder(t *testing.T) {
	global := &Config{Denylist: DenylistConfig{Packages: []string{"a", "b"}}}
	project := &Config{Denylist: DenylistConfig{Packages: []string{"b", "c"}}}

	merged := Merge(global, project)
	want := []string{"a", "b", "c"}
	if len(merged.Denylist.Packages) != len(want) {
		t.Fatalf("Denylist.Packages = %v, want %v", merged.Denylist.Packages, want)
	}
	for i, v := range want {
		if merged.Denylist.Packages[i] != v {
			t.Errorf("Denylist.Packages[%d] = %q, want %q", i, merged.Denylist.Packages[i], v)
		}
	}
}

func TestIsCheckDisabled(t *testing.T) {
	cfg := Defaults()
	cfg.Checks.Disable = []string{"popularity"}
	cfg.Checks.Registry = map[string]RegistryChecksConfig{
		"npm": {Disable: []string{"install-script"}},
	}

	if !cfg.IsCheckDisabled("npm", "popularity") {
		t.Error("popularity should be globally disabled")
	}
	if !cfg.IsCheckDisabled("npm", "install-script") {
		t.Error("install-script should be disabled for npm")
	}
	if cfg.IsCheckDisabled("cargo", "install-script") {
		t.Error("install-script should not be disabled for cargo")
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
