// Package config loads and merges safe-pkgs configuration: a global
// file and an optional per-project overlay, following §4.4's merge and
// sanitize semantics.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const (
	DefaultProjectFile = ".safe-pkgs.toml"

	envCachePath    = "SAFE_PKGS_CACHE_PATH"
	envGlobalConfig = "SAFE_PKGS_CONFIG_PATH"
	envProjectPath  = "SAFE_PKGS_PROJECT_CONFIG_PATH"
)

// StalenessConfig holds the §4.5 staleness check's tunables.
type StalenessConfig struct {
	WarnMajorVersionsBehind int      `toml:"warn_major_versions_behind"`
	WarnMinorVersionsBehind int      `toml:"warn_minor_versions_behind"`
	WarnAgeDays             int      `toml:"warn_age_days"`
	IgnoreFor               []string `toml:"ignore_for"`
}

// CacheConfig holds decision-cache tunables.
type CacheConfig struct {
	TTLMinutes int `toml:"ttl_minutes"`
}

// AllowlistConfig force-allows matching packages, clamping risk to low.
type AllowlistConfig struct {
	Packages []string `toml:"packages"`
}

// DenylistConfig force-denies matching packages or publishers.
type DenylistConfig struct {
	Packages   []string `toml:"packages"`
	Publishers []string `toml:"publishers"`
}

// RegistryChecksConfig disables checks for one specific registry.
type RegistryChecksConfig struct {
	Disable []string `toml:"disable"`
}

// ChecksConfig controls which checks run, globally and per registry.
type ChecksConfig struct {
	Disable  []string                        `toml:"disable"`
	Registry map[string]RegistryChecksConfig `toml:"registry"`
}

// Config is the top-level safe-pkgs configuration, per §4.4's key table.
type Config struct {
	MinVersionAgeDays  int             `toml:"min_version_age_days"`
	MinWeeklyDownloads int             `toml:"min_weekly_downloads"`
	MaxRisk            core.RiskLevel  `toml:"max_risk"`
	Cache              CacheConfig     `toml:"cache"`
	Staleness          StalenessConfig `toml:"staleness"`
	Allowlist          AllowlistConfig `toml:"allowlist"`
	Denylist           DenylistConfig  `toml:"denylist"`
	Checks             ChecksConfig    `toml:"checks"`
}

// Defaults returns the §4.4 default configuration.
func Defaults() *Config {
	return &Config{
		MinVersionAgeDays:  7,
		MinWeeklyDownloads: 50,
		MaxRisk:            core.RiskMedium,
		Cache:              CacheConfig{TTLMinutes: 30},
		Staleness: StalenessConfig{
			WarnMajorVersionsBehind: 2,
			WarnMinorVersionsBehind: 3,
			WarnAgeDays:             365,
		},
	}
}

// Paths resolves the global and project config file paths, honoring the
// environment-variable overrides named in §6 before falling back to the
// per-user default and "./.safe-pkgs.toml" respectively.
func Paths() (globalPath, projectPath string) {
	globalPath = os.Getenv(envGlobalConfig)
	if globalPath == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			globalPath = filepath.Join(dir, "safe-pkgs", "config.toml")
		}
	}

	projectPath = os.Getenv(envProjectPath)
	if projectPath == "" {
		projectPath = DefaultProjectFile
	}
	return globalPath, projectPath
}

// CachePath resolves the decision-cache store path, honoring
// SAFE_PKGS_CACHE_PATH before the per-user default.
func CachePath() string {
	if p := os.Getenv(envCachePath); p != "" {
		return p
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "safe-pkgs-cache.db"
	}
	return filepath.Join(dir, "safe-pkgs", "cache.db")
}

// Load reads and merges the global and project config files, discarding
// warnings. Use LoadWithWarnings to surface them to the caller.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg, _, err := LoadWithWarnings(globalPath, projectPath)
	return cfg, err
}

// LoadWithWarnings reads the global file then the project file (both
// optional; a missing file is not an error) and merges them per §4.4:
// project scalars replace global, list fields concatenate global then
// project de-duplicating by first occurrence, table fields recurse.
// The merged config is sanitized before being returned.
func LoadWithWarnings(globalPath, projectPath string) (*Config, []string, error) {
	global, err := readFile(globalPath)
	if err != nil {
		return nil, nil, &core.ConfigError{Path: globalPath, Detail: err.Error()}
	}

	project, err := readFile(projectPath)
	if err != nil {
		return nil, nil, &core.ConfigError{Path: projectPath, Detail: err.Error()}
	}

	merged := Merge(Defaults(), Merge(global, project))
	var warnings []string
	if !validMaxRisk(merged.MaxRisk) {
		warnings = append(warnings, fmt.Sprintf("max_risk: unknown value %q, reset to default", merged.MaxRisk))
	}
	Sanitize(merged)
	return merged, warnings, nil
}

// readFile parses path as TOML into a zero-value Config. A missing file
// returns an empty Config (all zero values), which Merge then treats as
// "nothing overridden" rather than an error.
func readFile(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays project onto global per §4.4's rules: scalars present
// in project replace global's, list fields concatenate+dedup, table
// fields recurse with the same rules. Merge is idempotent: merging a
// config with an empty Config is a no-op (§8 property 3).
func Merge(global, project *Config) *Config {
	if global == nil {
		global = &Config{}
	}
	if project == nil {
		project = &Config{}
	}

	out := *global

	if project.MinVersionAgeDays != 0 {
		out.MinVersionAgeDays = project.MinVersionAgeDays
	}
	if project.MinWeeklyDownloads != 0 {
		out.MinWeeklyDownloads = project.MinWeeklyDownloads
	}
	if project.MaxRisk != "" {
		out.MaxRisk = project.MaxRisk
	}
	if project.Cache.TTLMinutes != 0 {
		out.Cache.TTLMinutes = project.Cache.TTLMinutes
	}

	out.Staleness = mergeStaleness(global.Staleness, project.Staleness)
	out.Allowlist.Packages = core.DedupOrdered(global.Allowlist.Packages, project.Allowlist.Packages)
	out.Denylist.Packages = core.DedupOrdered(global.Denylist.Packages, project.Denylist.Packages)
	out.Denylist.Publishers = core.DedupOrdered(global.Denylist.Publishers, project.Denylist.Publishers)
	out.Checks = mergeChecks(global.Checks, project.Checks)

	return &out
}

func mergeStaleness(global, project StalenessConfig) StalenessConfig {
	out := global
	if project.WarnMajorVersionsBehind != 0 {
		out.WarnMajorVersionsBehind = project.WarnMajorVersionsBehind
	}
	if project.WarnMinorVersionsBehind != 0 {
		out.WarnMinorVersionsBehind = project.WarnMinorVersionsBehind
	}
	if project.WarnAgeDays != 0 {
		out.WarnAgeDays = project.WarnAgeDays
	}
	out.IgnoreFor = core.DedupOrdered(global.IgnoreFor, project.IgnoreFor)
	return out
}

func mergeChecks(global, project ChecksConfig) ChecksConfig {
	out := ChecksConfig{
		Disable:  core.DedupOrdered(global.Disable, project.Disable),
		Registry: make(map[string]RegistryChecksConfig),
	}
	for reg, cfg := range global.Registry {
		out.Registry[reg] = cfg
	}
	for reg, cfg := range project.Registry {
		existing := out.Registry[reg]
		out.Registry[reg] = RegistryChecksConfig{
			Disable: core.DedupOrdered(existing.Disable, cfg.Disable),
		}
	}
	return out
}

var validRiskLevels = map[core.RiskLevel]bool{
	core.RiskNone:     true,
	core.RiskLow:      true,
	core.RiskMedium:   true,
	core.RiskHigh:     true,
	core.RiskCritical: true,
}

func validMaxRisk(r core.RiskLevel) bool {
	return validRiskLevels[r]
}

// Sanitize applies §3's config invariants in place: any "positive
// integer" field holding a non-positive value after merge resets to its
// default, and an unrecognized max_risk string resets to the default.
// Sanitize is idempotent.
func Sanitize(cfg *Config) {
	defaults := Defaults()

	if cfg.MinVersionAgeDays <= 0 {
		cfg.MinVersionAgeDays = defaults.MinVersionAgeDays
	}
	if cfg.MinWeeklyDownloads <= 0 {
		cfg.MinWeeklyDownloads = defaults.MinWeeklyDownloads
	}
	if !validMaxRisk(cfg.MaxRisk) {
		cfg.MaxRisk = defaults.MaxRisk
	}
	if cfg.Cache.TTLMinutes <= 0 {
		cfg.Cache.TTLMinutes = defaults.Cache.TTLMinutes
	}
	if cfg.Staleness.WarnMajorVersionsBehind <= 0 {
		cfg.Staleness.WarnMajorVersionsBehind = defaults.Staleness.WarnMajorVersionsBehind
	}
	if cfg.Staleness.WarnMinorVersionsBehind <= 0 {
		cfg.Staleness.WarnMinorVersionsBehind = defaults.Staleness.WarnMinorVersionsBehind
	}
	if cfg.Staleness.WarnAgeDays <= 0 {
		cfg.Staleness.WarnAgeDays = defaults.Staleness.WarnAgeDays
	}
}

// IsCheckDisabled reports whether the given check is disabled for the
// given registry, honoring both the global checks.disable list and the
// per-registry checks.registry.<key>.disable override.
func (c *Config) IsCheckDisabled(registry string, check core.CheckID) bool {
	for _, id := range c.Checks.Disable {
		if core.CheckID(id) == check {
			return true
		}
	}
	if reg, ok := c.Checks.Registry[registry]; ok {
		for _, id := range reg.Disable {
			if core.CheckID(id) == check {
				return true
			}
		}
	}
	return false
}
