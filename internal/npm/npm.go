// Package npm provides a registry provider for registry.npmjs.org.
package npm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const (
	DefaultURL      = "https://registry.npmjs.org"
	DownloadsAPIURL = "https://api.npmjs.org"
	key             = "npm"
)

func init() {
	core.Register(key, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

// Registry is the npm registry provider.
type Registry struct {
	baseURL           string
	downloadsBaseURL  string
	client            *core.Client
	urls              *URLs
}

// New creates an npm registry client against baseURL (or DefaultURL if empty).
func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	r := &Registry{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		downloadsBaseURL: DownloadsAPIURL,
		client:           client,
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
		"popularity":     true,
		"install-script": true,
		"advisory":       true,
	}
}

func (r *Registry) LockfileParser() core.LockfileParser {
	return &lockfileParser{}
}

type packageResponse struct {
	ID          string                 `json:"_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Homepage    interface{}            `json:"homepage"`
	Repository  interface{}            `json:"repository"`
	Versions    map[string]versionInfo `json:"versions"`
	Time        map[string]string      `json:"time"`
	Maintainers []maintainerInfo       `json:"maintainers"`
	DistTags    map[string]string      `json:"dist-tags"`
}

type versionInfo struct {
	Name         string                 `json:"name"`
	Version      string                 `json:"version"`
	Description  string                 `json:"description"`
	Keywords     interface{}            `json:"keywords"`
	License      interface{}            `json:"license"`
	Homepage     interface{}            `json:"homepage"`
	Repository   interface{}            `json:"repository"`
	Dependencies map[string]string      `json:"dependencies"`
	DevDeps      map[string]string      `json:"devDependencies"`
	OptionalDeps map[string]string      `json:"optionalDependencies"`
	Deprecated   string                 `json:"deprecated"`
	Dist         distInfo               `json:"dist"`
	Maintainers  []maintainerInfo       `json:"maintainers"`
	Scripts      map[string]string      `json:"scripts"`
	Engines      map[string]string      `json:"engines"`
}

type distInfo struct {
	Shasum    string `json:"shasum"`
	Tarball   string `json:"tarball"`
	Integrity string `json:"integrity"`
}

type maintainerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type downloadsResponse struct {
	Downloads int64  `json:"downloads"`
	Package   string `json:"package"`
}

func (r *Registry) fetchPackageResponse(ctx context.Context, name string) (*packageResponse, error) {
	escapedName := url.PathEscape(name)
	fetchURL := fmt.Sprintf("%s/%s", r.baseURL, escapedName)

	var resp packageResponse
	if err := r.client.GetJSON(ctx, fetchURL, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMetadata implements core.Registry.
func (r *Registry) FetchMetadata(ctx context.Context, name, version string) (*core.PackageMetadata, error) {
	resp, err := r.fetchPackageResponse(ctx, name)
	if err != nil {
		var httpErr *core.HTTPError
		if asHTTPError(err, &httpErr) && httpErr.IsNotFound() {
			return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
		}
		return nil, err
	}

	latestVersion := resp.DistTags["latest"]

	resolvedVersion := version
	if resolvedVersion == "" {
		resolvedVersion = latestVersion
	}
	v, ok := resp.Versions[resolvedVersion]
	if !ok {
		if version != "" {
			return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
		}
	}

	knownVersions := make([]string, 0, len(resp.Versions))
	for num := range resp.Versions {
		knownVersions = append(knownVersions, num)
	}

	var publishedAt time.Time
	if ts, ok := resp.Time[resolvedVersion]; ok {
		publishedAt, _ = time.Parse(time.RFC3339, ts)
	}

	installScript := core.Unknown
	if v.Scripts != nil {
		if _, ok := v.Scripts["install"]; ok {
			installScript = core.True
		} else if _, ok := v.Scripts["postinstall"]; ok {
			installScript = core.True
		} else {
			installScript = core.False
		}
	}

	publishers := make([]string, 0, len(resp.Maintainers))
	for _, m := range resp.Maintainers {
		publishers = append(publishers, m.Name)
	}

	var weeklyDownloads *int64
	if downloads, ok, err := r.fetchDownloads(ctx, name); err == nil && ok {
		weeklyDownloads = &downloads
	}

	return &core.PackageMetadata{
		Registry:         key,
		Name:             name,
		Exists:           true,
		RequestedVersion: version,
		LatestVersion:    latestVersion,
		PublishedAt:      publishedAt,
		WeeklyDownloads:  weeklyDownloads,
		HasInstallScript: installScript,
		KnownVersions:    knownVersions,
		Publishers:       publishers,
		Licenses:         core.NormalizeLicense(extractLicense(v.License)),
		Homepage:         extractString(resp.Homepage),
		Repository:       extractRepoURL(resp.Repository, v.Repository),
	}, nil
}

// fetchDownloads reports npm's real weekly-download counter via the
// separate api.npmjs.org downloads API. A missing entry (new or
// unpublished packages) is reported as ok == false, not an error.
func (r *Registry) fetchDownloads(ctx context.Context, name string) (int64, bool, error) {
	escapedName := url.PathEscape(name)
	fetchURL := fmt.Sprintf("%s/downloads/point/last-week/%s", r.downloadsBaseURL, escapedName)

	var resp downloadsResponse
	if err := r.client.GetJSON(ctx, fetchURL, &resp); err != nil {
		var httpErr *core.HTTPError
		if asHTTPError(err, &httpErr) && httpErr.IsNotFound() {
			return 0, false, nil
		}
		return 0, false, err
	}
	return resp.Downloads, true, nil
}

func asHTTPError(err error, target **core.HTTPError) bool {
	if httpErr, ok := err.(*core.HTTPError); ok {
		*target = httpErr
		return true
	}
	return false
}

func extractString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if arr, ok := v.([]interface{}); ok && len(arr) > 0 {
		if s, ok := arr[0].(string); ok {
			return s
		}
	}
	return ""
}

func extractRepoURL(pkgRepo, versionRepo interface{}) string {
	for _, repo := range []interface{}{versionRepo, pkgRepo} {
		switch r := repo.(type) {
		case string:
			return normalizeGitURL(r)
		case map[string]interface{}:
			if u, ok := r["url"].(string); ok {
				return normalizeGitURL(u)
			}
		}
	}
	return ""
}

func normalizeGitURL(u string) string {
	u = strings.TrimPrefix(u, "git+")
	u = strings.TrimPrefix(u, "git://")
	u = strings.TrimSuffix(u, ".git")
	if strings.HasPrefix(u, "github.com/") {
		u = "https://" + u
	}
	return u
}

func extractLicense(v interface{}) string {
	switch l := v.(type) {
	case string:
		return l
	case map[string]interface{}:
		if t, ok := l["type"].(string); ok {
			return t
		}
	case []interface{}:
		var licenses []string
		for _, item := range l {
			switch li := item.(type) {
			case string:
				licenses = append(licenses, li)
			case map[string]interface{}:
				if t, ok := li["type"].(string); ok {
					licenses = append(licenses, t)
				}
			}
		}
		return strings.Join(licenses, ",")
	}
	return ""
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://www.npmjs.com/package/%s/v/%s", name, version)
	}
	return fmt.Sprintf("https://www.npmjs.com/package/%s", name)
}

func (u *URLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	shortName := name
	if strings.Contains(name, "/") {
		parts := strings.SplitN(name, "/", 2)
		shortName = parts[1]
	}
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", u.baseURL, name, shortName, version)
}

func (u *URLs) Documentation(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://www.npmjs.com/package/%s/v/%s", name, version)
	}
	return fmt.Sprintf("https://www.npmjs.com/package/%s", name)
}
