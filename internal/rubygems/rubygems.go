// Package rubygems provides a registry provider for rubygems.org.
package rubygems

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const (
	DefaultURL = "https://rubygems.org"
	key        = "gem"
)

func init() {
	core.Register(key, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

// Registry is the rubygems.org registry provider.
type Registry struct {
	baseURL string
	client  *core.Client
	urls    *URLs
}

// New creates a rubygems registry client against baseURL (or DefaultURL if empty).
func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	r := &Registry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
	r.urls = &URLs{baseURL: r.baseURL}
	return r
}

func (r *Registry) Key() string { return key }

func (r *Registry) SupportedChecks() map[core.CheckID]bool {
	return map[core.CheckID]bool{
		"existence":      true,
		"version-age":    true,
		"staleness":      true,
		"typosquat":      true,
		"popularity":     false,
		"install-script": false,
		"advisory":       true,
	}
}

// LockfileParser implements core.Registry. rubygems.org has no
// manifest-expansion analog wired here (Gemfile.lock requires resolving
// the whole dependency graph, not just reading a flat name/version
// list); lockfile expansion is left unsupported.
func (r *Registry) LockfileParser() core.LockfileParser { return nil }

type gemResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Licenses    []string `json:"licenses"`
	HomepageURI string   `json:"homepage_uri"`
	SourceURI   string   `json:"source_code_uri"`
	Downloads   int64    `json:"downloads"`
}

type versionResponse struct {
	Number     string `json:"number"`
	CreatedAt  string `json:"created_at"`
	Prerelease bool   `json:"prerelease"`
}

type ownerResponse struct {
	Handle string `json:"handle"`
}

func (r *Registry) fetchGem(ctx context.Context, name string) (*gemResponse, error) {
	url := fmt.Sprintf("%s/api/v1/gems/%s.json", r.baseURL, name)
	var resp gemResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *Registry) fetchVersions(ctx context.Context, name string) ([]versionResponse, error) {
	url := fmt.Sprintf("%s/api/v1/versions/%s.json", r.baseURL, name)
	var resp []versionResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FetchMetadata implements core.Registry.
func (r *Registry) FetchMetadata(ctx context.Context, name, version string) (*core.PackageMetadata, error) {
	gem, err := r.fetchGem(ctx, name)
	if err != nil {
		var httpErr *core.HTTPError
		if asHTTPError(err, &httpErr) && httpErr.IsNotFound() {
			return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
		}
		return nil, err
	}

	versions, err := r.fetchVersions(ctx, name)
	if err != nil {
		var httpErr *core.HTTPError
		if !asHTTPError(err, &httpErr) || !httpErr.IsNotFound() {
			return nil, err
		}
	}

	resolvedVersion := version
	if resolvedVersion == "" {
		resolvedVersion = gem.Version
	}

	knownVersions := make([]string, 0, len(versions))
	var publishedAt time.Time
	found := resolvedVersion == gem.Version
	for _, v := range versions {
		knownVersions = append(knownVersions, v.Number)
		if v.Number == resolvedVersion {
			found = true
			if v.CreatedAt != "" {
				publishedAt, _ = time.Parse(time.RFC3339, v.CreatedAt)
			}
		}
	}
	if !found && version != "" {
		return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
	}

	publishers, _ := r.fetchOwners(ctx, name)

	return &core.PackageMetadata{
		Registry:         key,
		Name:             name,
		Exists:           true,
		RequestedVersion: version,
		LatestVersion:    gem.Version,
		PublishedAt:      publishedAt,
		HasInstallScript: core.Unknown,
		KnownVersions:    knownVersions,
		Publishers:       publishers,
		Licenses:         core.NormalizeLicense(strings.Join(gem.Licenses, ",")),
		Homepage:         gem.HomepageURI,
		Repository:       gem.SourceURI,
	}, nil
}

// fetchOwners reports gem owners for the Publishers field; rubygems.org
// has no weekly-download telemetry (only a lifetime total), so the
// popularity check is declared unsupported rather than fed a misleading
// number.
func (r *Registry) fetchOwners(ctx context.Context, name string) ([]string, error) {
	url := fmt.Sprintf("%s/api/v1/gems/%s/owners.json", r.baseURL, name)
	var resp []ownerResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(resp))
	for _, o := range resp {
		owners = append(owners, o.Handle)
	}
	return owners, nil
}

func asHTTPError(err error, target **core.HTTPError) bool {
	if httpErr, ok := err.(*core.HTTPError); ok {
		*target = httpErr
		return true
	}
	return false
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/gems/%s/versions/%s", u.baseURL, name, version)
	}
	return fmt.Sprintf("%s/gems/%s", u.baseURL, name)
}

func (u *URLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s/downloads/%s-%s.gem", u.baseURL, name, version)
}

func (u *URLs) Documentation(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://www.rubydoc.info/gems/%s/%s", name, version)
	}
	return fmt.Sprintf("https://www.rubydoc.info/gems/%s", name)
}
