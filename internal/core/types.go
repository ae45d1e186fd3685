// Package core provides the shared data model and registry-provider
// contract used by every ecosystem package and by the check engine.
package core

import "time"

// Tristate represents a boolean fact that a registry may not be able to
// answer at all ("unknown"), as opposed to a definite true/false.
type Tristate int

const (
	Unknown Tristate = iota
	True
	False
)

// PackageMetadata is the normalized view of a package/version pair that
// every registry provider produces, regardless of ecosystem.
type PackageMetadata struct {
	Registry         string
	Name             string
	Exists           bool
	RequestedVersion string
	LatestVersion    string
	PublishedAt      time.Time // publish time of RequestedVersion (or LatestVersion if none requested)
	WeeklyDownloads  *int64    // nil when the registry can't report downloads
	HasInstallScript Tristate
	KnownVersions    []string // all known version numbers, as reported by the registry
	Publishers       []string
	Licenses         string
	Homepage         string
	Repository       string
}


// Severity orders the severity of an individual advisory or check finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskLevel is Severity plus the "no risk observed" zero value, used on
// Decision. RiskLevel and Severity share string values so a Severity can
// be converted directly into the RiskLevel it denotes.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = map[RiskLevel]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// Less reports whether r ranks strictly below other.
func (r RiskLevel) Less(other RiskLevel) bool {
	return riskOrder[r] < riskOrder[other]
}

// LessEqual reports whether r ranks at or below other.
func (r RiskLevel) LessEqual(other RiskLevel) bool {
	return riskOrder[r] <= riskOrder[other]
}

// Join returns the higher of the two risk levels.
func (r RiskLevel) Join(other RiskLevel) RiskLevel {
	if other.Less(r) {
		return r
	}
	return other
}

// FromSeverity converts a finding/advisory Severity into the equivalent RiskLevel.
func FromSeverity(s Severity) RiskLevel {
	switch s {
	case SeverityLow:
		return RiskLow
	case SeverityMedium:
		return RiskMedium
	case SeverityHigh:
		return RiskHigh
	case SeverityCritical:
		return RiskCritical
	default:
		return RiskNone
	}
}

// Advisory is a single known vulnerability affecting a package.
type Advisory struct {
	ID             string
	Severity       Severity
	Summary        string
	AffectedRanges []string
}

// Finding is a single observation produced by one check.
type Finding struct {
	CheckID  string
	Severity Severity
	Message  string
}

// Decision is the final output of evaluating one package reference.
type Decision struct {
	Allow    bool           `json:"allow"`
	Risk     RiskLevel      `json:"risk"`
	Reasons  []string       `json:"reasons"`
	Metadata map[string]any `json:"metadata"`
}

// PackageRef identifies a single package to evaluate. Version is empty
// when the caller wants the latest version evaluated.
type PackageRef struct {
	Registry string
	Name     string
	Version  string
}

// DedupOrderedAppend appends value to list if it isn't already present,
// preserving first-seen order. Used for Decision.Reasons and for config
// list-field merging alike.
func DedupOrderedAppend(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

// DedupOrdered concatenates a then b, preserving first-seen order and
// dropping duplicates. Used by the configuration merger for list fields.
func DedupOrdered(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		out = DedupOrderedAppend(out, v)
	}
	for _, v := range b {
		out = DedupOrderedAppend(out, v)
	}
	return out
}
