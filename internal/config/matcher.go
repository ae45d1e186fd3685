package config

import (
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// MatchPackage reports whether pattern matches the given (name, version)
// pair. A pattern is either a bare name ("left-pad"), a glob over the
// name ("@babel/*"), or a "name@range" pair whose range half is a
// semver constraint ("left-pad@<1.1.0"). Used by allowlist.packages,
// denylist.packages, and staleness.ignore_for.
func MatchPackage(pattern, name, version string) bool {
	// Split at the last "@" past position 0, so a scoped name's leading
	// "@" stays part of the name.
	patternName, patternRange, hasRange := pattern, "", false
	if at := strings.LastIndex(pattern, "@"); at > 0 {
		patternName, patternRange, hasRange = pattern[:at], pattern[at+1:], true
	}
	if !matchName(patternName, name) {
		return false
	}
	if !hasRange {
		return true
	}
	if version == "" {
		return false
	}
	constraint, err := semver.NewConstraint(patternRange)
	if err != nil {
		return patternRange == version
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return patternRange == version
	}
	return constraint.Check(v)
}

// MatchAny reports whether any pattern in patterns matches (name, version).
func MatchAny(patterns []string, name, version string) bool {
	for _, p := range patterns {
		if MatchPackage(p, name, version) {
			return true
		}
	}
	return false
}

func matchName(pattern, name string) bool {
	if pattern == name {
		return true
	}
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}
