// Package checks implements the seven independent safety checks of
// §4.5: existence, version-age, staleness, typosquat, popularity,
// install-script, and advisory. Each check is a small, stateless value
// that inspects a CheckExecutionContext and returns zero or more
// findings.
package checks

import (
	"context"
	"sort"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/config"
	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// ExecutionContext is the immutable, per-invocation bundle passed to
// every check (§3's CheckExecutionContext). The orchestrator leaves
// Advisories empty; the advisory check queries AdvisoryProvider itself.
type ExecutionContext struct {
	Ref             core.PackageRef
	Metadata        *core.PackageMetadata
	Advisories      []core.Advisory
	AdvisoryProvider core.AdvisoryProvider
	Config          *config.Config
	Now             time.Time
}

// Check is the interface every safety check implements.
type Check interface {
	ID() core.CheckID
	Description() string
	// Priority orders findings when multiple checks fire; lower runs
	// first. Ties are broken by ID, lexicographically.
	Priority() int
	RunsOnMissingPackage() bool
	RunsOnMissingVersion() bool
	NeedsWeeklyDownloads() bool
	NeedsAdvisories() bool
	Run(ctx context.Context, ectx *ExecutionContext) ([]core.Finding, error)
}

// All returns every check the engine knows about, in no particular
// order — callers that need priority order should use Sorted.
func All() []Check {
	return []Check{
		&ExistenceCheck{},
		&VersionAgeCheck{},
		&StalenessCheck{},
		&TyposquatCheck{},
		&PopularityCheck{},
		&InstallScriptCheck{},
		&AdvisoryCheck{},
	}
}

// Sorted returns checks ordered by (priority, id) per §5's ordering
// guarantee.
func Sorted(cs []Check) []Check {
	out := make([]Check, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() < out[j].Priority()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

const defaultPriority = 100
