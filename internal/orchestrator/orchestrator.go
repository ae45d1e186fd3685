// Package orchestrator implements §4.6: resolving a package reference
// to a Decision by consulting policy, the decision cache, a registry
// provider, and the check engine, in that order.
package orchestrator

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/git-pkgs/safe-pkgs/internal/audit"
	"github.com/git-pkgs/safe-pkgs/internal/cache"
	"github.com/git-pkgs/safe-pkgs/internal/checks"
	"github.com/git-pkgs/safe-pkgs/internal/config"
	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// DefaultDeadline is the per-request evaluation timeout (§5).
const DefaultDeadline = 20 * time.Second

// DefaultFanout bounds concurrent in-flight package evaluations during
// a lockfile expansion (§5).
const DefaultFanout = 16

// Orchestrator evaluates package references into decisions.
type Orchestrator struct {
	Client      *core.Client
	Cache       *cache.Cache
	Advisory    core.AdvisoryProvider
	Audit       *audit.Writer
	Deadline    time.Duration
	MaxFanout   int64
	allChecks   []checks.Check
}

// New creates an Orchestrator with the given dependencies. client and
// advisoryProvider may be shared across many Orchestrator instances.
// cache and auditWriter may be nil, disabling caching and audit logging
// respectively.
func New(client *core.Client, c *cache.Cache, advisoryProvider core.AdvisoryProvider, auditWriter *audit.Writer) *Orchestrator {
	return &Orchestrator{
		Client:    client,
		Cache:     c,
		Advisory:  advisoryProvider,
		Audit:     auditWriter,
		Deadline:  DefaultDeadline,
		MaxFanout: DefaultFanout,
		allChecks: checks.Sorted(checks.All()),
	}
}

// Evaluate resolves ref into a Decision per §4.6's ten steps.
func (o *Orchestrator) Evaluate(ctx context.Context, ref core.PackageRef, cfg *config.Config) (core.Decision, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.deadline())
	defer cancel()

	decision, source, err := o.evaluate(ctx, ref, cfg)
	if err != nil {
		return core.Decision{}, err
	}

	if o.Audit != nil {
		o.Audit.Append(audit.Entry{
			Timestamp: time.Now(),
			Registry:  ref.Registry,
			Package:   ref.Name,
			Version:   ref.Version,
			Decision:  decision,
			Source:    source,
			LatencyMS: time.Since(start).Milliseconds(),
		})
	}

	return decision, nil
}

// EvaluateAll evaluates every ref in refs, independently, with at most
// MaxFanout evaluations in flight at once (§4.7, §5). Results are
// returned in the same order as refs; a failed evaluation is reported
// at its index rather than aborting the batch.
func (o *Orchestrator) EvaluateAll(ctx context.Context, refs []core.PackageRef, cfg *config.Config) ([]core.Decision, []error) {
	decisions := make([]core.Decision, len(refs))
	errs := make([]error, len(refs))

	sem := semaphore.NewWeighted(o.maxFanout())
	var g errgroup.Group

	for i, ref := range refs {
		i, ref := i, ref
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			decisions[i], errs[i] = o.Evaluate(ctx, ref, cfg)
			return nil
		})
	}
	_ = g.Wait()

	return decisions, errs
}

func (o *Orchestrator) maxFanout() int64 {
	if o.MaxFanout <= 0 {
		return DefaultFanout
	}
	return o.MaxFanout
}

func (o *Orchestrator) deadline() time.Duration {
	if o.Deadline <= 0 {
		return DefaultDeadline
	}
	return o.Deadline
}

// evaluate does the work of Evaluate and additionally reports where the
// decision came from ("policy", "cache", "live", "timeout",
// "unsupported", "panic"), for audit purposes.
func (o *Orchestrator) evaluate(ctx context.Context, ref core.PackageRef, cfg *config.Config) (decision core.Decision, source string, err error) {
	defer func() {
		if r := recover(); r != nil {
			var id [8]byte
			_, _ = rand.Read(id[:])
			internalErr := &core.InternalError{CorrelationID: hex.EncodeToString(id[:]), Detail: fmt.Sprint(r)}
			slog.Error("panic during evaluation", "registry", ref.Registry, "package", ref.Name, "error", internalErr)
			decision = core.Decision{
				Allow:   false,
				Risk:    core.RiskCritical,
				Reasons: []string{fmt.Sprintf("internal error during evaluation (correlation id %s)", internalErr.CorrelationID)},
			}
			source = "panic"
			err = nil
		}
	}()

	reg, regErr := core.New(ref.Registry, "", o.Client)
	if regErr != nil {
		var unsupported *core.UnsupportedError
		if asUnsupported(regErr, &unsupported) {
			return core.Decision{
				Allow:   false,
				Risk:    core.RiskCritical,
				Reasons: []string{unsupported.Reason},
			}, "unsupported", nil
		}
		return core.Decision{}, "", regErr
	}

	denied, allowlisted := policyMatch(cfg, ref)
	if denied {
		return core.Decision{
			Allow:   false,
			Risk:    core.RiskCritical,
			Reasons: []string{"explicitly denied by policy"},
		}, "policy", nil
	}

	fingerprint := configFingerprint(cfg)
	cacheKey := ""
	if o.Cache != nil {
		cacheKey = cache.Key(ref, fingerprint)
		if cached, hit, err := o.Cache.Get(ctx, cacheKey); err == nil && hit {
			decision := clampAllowlist(*cached, allowlisted)
			return decision, "cache", nil
		}
	}

	decision, err = o.evaluateLive(ctx, reg, ref, cfg, allowlisted)
	if err != nil {
		if ctx.Err() != nil {
			return core.Decision{
				Allow:   false,
				Risk:    core.RiskCritical,
				Reasons: []string{"evaluation timed out"},
			}, "timeout", nil
		}
		return core.Decision{}, "", err
	}

	if o.Cache != nil {
		ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
		_ = o.Cache.Put(ctx, cacheKey, decision, ttl)
	}

	return decision, "live", nil
}

// evaluateLive runs steps 4-9 of §4.6: fetch metadata, run checks, and
// aggregate into a decision.
func (o *Orchestrator) evaluateLive(ctx context.Context, reg core.Registry, ref core.PackageRef, cfg *config.Config, allowlisted bool) (core.Decision, error) {
	metadata, err := reg.FetchMetadata(ctx, ref.Name, ref.Version)
	if err != nil {
		if ctx.Err() != nil {
			return core.Decision{}, err
		}
		// Fail-closed (§7): a provider failure that isn't a deadline
		// still must not complete with an ambiguous allow.
		return core.Decision{
			Allow:   false,
			Risk:    core.RiskCritical,
			Reasons: []string{fmt.Sprintf("fetching metadata for %s from %s failed: %v", ref.Name, ref.Registry, err)},
		}, nil
	}

	if publisher, denied := deniedPublisher(cfg, metadata.Publishers); denied {
		return core.Decision{
			Allow:   false,
			Risk:    core.RiskCritical,
			Reasons: []string{fmt.Sprintf("publisher %s is explicitly denied by policy", publisher)},
		}, nil
	}

	ectx := &checks.ExecutionContext{
		Ref:              ref,
		Metadata:         metadata,
		AdvisoryProvider: o.Advisory,
		Config:           cfg,
		Now:              time.Now(),
	}

	applicable := o.applicableChecks(reg, cfg, ref, metadata)

	existenceCheck, rest := splitExistence(applicable)
	var findings []core.Finding

	if existenceCheck != nil {
		existenceFindings, err := existenceCheck.Run(ctx, ectx)
		if err != nil {
			existenceFindings = []core.Finding{errorFinding(existenceCheck.ID(), err)}
		}
		findings = append(findings, existenceFindings...)
		if hasCritical(existenceFindings) {
			return aggregate(findings, metadata, cfg, allowlisted), nil
		}
	}

	if !metadata.Exists {
		// Existence check disabled or unsupported but the package is
		// still missing: fall back to a synthetic critical finding so
		// the decision still reflects reality.
		findings = append(findings, core.Finding{
			CheckID:  "existence",
			Severity: core.SeverityCritical,
			Message:  fmt.Sprintf("package %s not found in %s", ref.Name, ref.Registry),
		})
		return aggregate(findings, metadata, cfg, allowlisted), nil
	}

	if len(rest) == 0 {
		if len(findings) == 0 {
			findings = append(findings, core.Finding{
				CheckID:  "none",
				Severity: core.SeverityLow,
				Message:  "no applicable checks",
			})
		}
		return aggregate(findings, metadata, cfg, allowlisted), nil
	}

	restFindings, err := o.runConcurrently(ctx, rest, ectx)
	if err != nil {
		return core.Decision{}, err
	}
	findings = append(findings, restFindings...)

	return aggregate(findings, metadata, cfg, allowlisted), nil
}

// runConcurrently runs every check in cs against ectx in parallel,
// turning a check error into a high-severity finding instead of
// aborting its siblings (§4.6 step 6).
func (o *Orchestrator) runConcurrently(ctx context.Context, cs []checks.Check, ectx *checks.ExecutionContext) ([]core.Finding, error) {
	results := make([][]core.Finding, len(cs))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(len(cs)))

	for i, c := range cs {
		i, c := i, c
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			findings, err := c.Run(gctx, ectx)
			if err != nil {
				results[i] = []core.Finding{errorFinding(c.ID(), err)}
				return nil
			}
			results[i] = findings
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []core.Finding
	for _, rs := range results {
		out = append(out, rs...)
	}
	return out, nil
}

func errorFinding(id core.CheckID, err error) core.Finding {
	return core.Finding{
		CheckID:  string(id),
		Severity: core.SeverityHigh,
		Message:  fmt.Sprintf("%s check failed: %v", id, err),
	}
}

func hasCritical(findings []core.Finding) bool {
	for _, f := range findings {
		if f.Severity == core.SeverityCritical {
			return true
		}
	}
	return false
}

func splitExistence(cs []checks.Check) (existence checks.Check, rest []checks.Check) {
	for _, c := range cs {
		if c.ID() == "existence" {
			existence = c
			continue
		}
		rest = append(rest, c)
	}
	return existence, rest
}

// applicableChecks selects the checks this evaluation should run, per
// §4.5's selection contract: the registry must support it, config must
// not disable it, and its data prerequisites (RunsOnMissingPackage,
// RunsOnMissingVersion, NeedsWeeklyDownloads, NeedsAdvisories) must be
// satisfiable given what FetchMetadata actually returned. A check whose
// prerequisites aren't met is excluded here, at selection time, rather
// than left to discover the gap itself inside Run — that's what lets
// the orchestrator tell "every check was inapplicable" apart from
// "every check ran and found nothing".
func (o *Orchestrator) applicableChecks(reg core.Registry, cfg *config.Config, ref core.PackageRef, metadata *core.PackageMetadata) []checks.Check {
	supported := reg.SupportedChecks()
	packageMissing := metadata == nil || !metadata.Exists
	versionMissing := packageMissing && ref.Version != ""

	var out []checks.Check
	for _, c := range o.allChecks {
		if !supported[c.ID()] {
			continue
		}
		if cfg.IsCheckDisabled(reg.Key(), c.ID()) {
			continue
		}
		if packageMissing && !c.RunsOnMissingPackage() {
			continue
		}
		if versionMissing && !c.RunsOnMissingVersion() {
			continue
		}
		if c.NeedsWeeklyDownloads() && (metadata == nil || metadata.WeeklyDownloads == nil) {
			continue
		}
		if c.NeedsAdvisories() && o.Advisory == nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

// aggregate implements §4.6 steps 7-9: join severities into a risk
// level, decide allow based on max_risk and allow/denylist clamps,
// build the ordered deduplicated reasons list, and project the
// metadata subset §3/§4.6 step 9 call for.
func aggregate(findings []core.Finding, metadata *core.PackageMetadata, cfg *config.Config, allowlisted bool) core.Decision {
	risk := core.RiskNone
	var reasons []string
	for _, f := range findings {
		risk = risk.Join(core.FromSeverity(f.Severity))
		reasons = core.DedupOrderedAppend(reasons, f.Message)
	}

	if allowlisted && core.RiskLow.Less(risk) {
		risk = core.RiskLow
	}

	allow := risk.LessEqual(cfg.MaxRisk)
	if allowlisted {
		allow = true
	}

	return core.Decision{
		Allow:    allow,
		Risk:     risk,
		Reasons:  reasons,
		Metadata: projectMetadata(metadata, findings),
	}
}

// projectMetadata builds the display-relevant metadata subset named by
// §4.6 step 9: latest/requested version, publish time, weekly
// downloads, and the IDs of any advisories the advisory check found.
func projectMetadata(metadata *core.PackageMetadata, findings []core.Finding) map[string]any {
	out := map[string]any{"finding_count": len(findings)}
	if metadata == nil {
		return out
	}

	out["latest_version"] = metadata.LatestVersion
	out["requested_version"] = metadata.RequestedVersion
	if !metadata.PublishedAt.IsZero() {
		out["published_at"] = metadata.PublishedAt
	}
	if metadata.WeeklyDownloads != nil {
		out["weekly_downloads"] = *metadata.WeeklyDownloads
	}

	var advisoryIDs []string
	for _, f := range findings {
		if f.CheckID != "advisory" || strings.HasPrefix(f.Message, "advisory lookup for") {
			continue
		}
		id, _, ok := strings.Cut(f.Message, ":")
		if ok {
			advisoryIDs = append(advisoryIDs, id)
		}
	}
	if len(advisoryIDs) > 0 {
		out["advisory_ids"] = advisoryIDs
	}

	return out
}

func clampAllowlist(decision core.Decision, allowlisted bool) core.Decision {
	if !allowlisted {
		return decision
	}
	if core.RiskLow.Less(decision.Risk) {
		decision.Risk = core.RiskLow
	}
	decision.Allow = true
	return decision
}

// asUnsupported reports whether err is (or wraps) a *core.UnsupportedError,
// assigning it to target on success.
func asUnsupported(err error, target **core.UnsupportedError) bool {
	return errors.As(err, target)
}

// policyMatch reports whether ref is denied or allowlisted by cfg,
// per §4.6 step 2. Denylist wins over allowlist when both match.
func policyMatch(cfg *config.Config, ref core.PackageRef) (denied, allowlisted bool) {
	if config.MatchAny(cfg.Denylist.Packages, ref.Name, ref.Version) {
		return true, false
	}
	allowlisted = config.MatchAny(cfg.Allowlist.Packages, ref.Name, ref.Version)
	return false, allowlisted
}

// deniedPublisher reports whether any of the package's reported
// publishers matches denylist.publishers.
func deniedPublisher(cfg *config.Config, publishers []string) (string, bool) {
	for _, p := range publishers {
		if config.MatchAny(cfg.Denylist.Publishers, p, "") {
			return p, true
		}
	}
	return "", false
}

// configFingerprint hashes the whole of cfg, so any configuration
// change invalidates stale cache entries implicitly.
func configFingerprint(cfg *config.Config) string {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
