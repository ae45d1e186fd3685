// Package cargo provides a registry provider for crates.io.
package cargo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const (
	DefaultURL = "https://crates.io"
	key        = "cargo"
)

func init() {
	core.Register(key, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

// Registry is the crates.io registry provider.
type Registry struct {
	baseURL string
	client  *core.Client
	urls    *URLs
}

// New creates a cargo registry client against baseURL (or DefaultURL if empty).
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
		"popularity":     true,
		"install-script": false,
		"advisory":       true,
	}
}

func (r *Registry) LockfileParser() core.LockfileParser {
	return &lockfileParser{}
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

type crateResponse struct {
	Crate    crateInfo     `json:"crate"`
	Versions []versionInfo `json:"versions"`
}

type crateInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Homepage    string   `json:"homepage"`
	Repository  string   `json:"repository"`
	Keywords    []string `json:"keywords"`
	Categories  []string `json:"categories"`
	Downloads   int64    `json:"downloads"`
	MaxVersion  string   `json:"max_version"`
}

type versionInfo struct {
	ID          int             `json:"id"`
	Num         string          `json:"num"`
	License     string          `json:"license"`
	Checksum    string          `json:"checksum"`
	Yanked      bool            `json:"yanked"`
	YankMessage string          `json:"yank_message"`
	CreatedAt   string          `json:"created_at"`
	Downloads   int64           `json:"downloads"`
	RustVersion string          `json:"rust_version"`
	PublishedBy publishedByInfo `json:"published_by"`
}

type publishedByInfo struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

type downloadsResponse struct {
	Meta struct {
		ExtraDownloads []struct {
			Date      string `json:"date"`
			Downloads int64  `json:"downloads"`
		} `json:"extra_downloads"`
	} `json:"meta"`
	Version []struct {
		Date      string `json:"date"`
		Downloads int64  `json:"downloads"`
	} `json:"version_downloads"`
}

func (r *Registry) fetchCrateResponse(ctx context.Context, name string) (*crateResponse, error) {
	url := fmt.Sprintf("%s/api/v1/crates/%s", r.baseURL, name)

	var resp crateResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMetadata implements core.Registry.
func (r *Registry) FetchMetadata(ctx context.Context, name, version string) (*core.PackageMetadata, error) {
	resp, err := r.fetchCrateResponse(ctx, name)
	if err != nil {
		if httpErr, ok := err.(*core.HTTPError); ok && httpErr.IsNotFound() {
			return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
		}
		return nil, err
	}

	latestVersion := resp.Crate.MaxVersion

	resolvedVersion := version
	if resolvedVersion == "" {
		resolvedVersion = latestVersion
	}

	var matched *versionInfo
	knownVersions := make([]string, 0, len(resp.Versions))
	for i := range resp.Versions {
		knownVersions = append(knownVersions, resp.Versions[i].Num)
		if resp.Versions[i].Num == resolvedVersion {
			matched = &resp.Versions[i]
		}
	}
	if matched == nil && version != "" {
		return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
	}

	var publishedAt time.Time
	var licenses string
	var publishers []string
	if matched != nil {
		if matched.CreatedAt != "" {
			publishedAt, _ = time.Parse(time.RFC3339, matched.CreatedAt)
		}
		licenses = matched.License
		if matched.PublishedBy.Login != "" {
			publishers = append(publishers, matched.PublishedBy.Login)
		}
	}

	var weeklyDownloads *int64
	if downloads, ok, err := r.fetchWeeklyDownloads(ctx, name); err == nil && ok {
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
		HasInstallScript: core.Unknown,
		KnownVersions:    knownVersions,
		Publishers:       publishers,
		Licenses:         core.NormalizeLicense(licenses),
		Homepage:         resp.Crate.Homepage,
		Repository:       resp.Crate.Repository,
	}, nil
}

// fetchWeeklyDownloads approximates a weekly download count by summing
// crates.io's last 7 daily buckets from its downloads endpoint (the API
// has no native weekly aggregate, unlike npm's).
func (r *Registry) fetchWeeklyDownloads(ctx context.Context, name string) (int64, bool, error) {
	url := fmt.Sprintf("%s/api/v1/crates/%s/downloads", r.baseURL, name)

	var resp downloadsResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		if httpErr, ok := err.(*core.HTTPError); ok && httpErr.IsNotFound() {
			return 0, false, nil
		}
		return 0, false, err
	}

	buckets := resp.Version
	if len(buckets) > 7 {
		buckets = buckets[len(buckets)-7:]
	}
	var total int64
	for _, b := range buckets {
		total += b.Downloads
	}
	return total, len(buckets) > 0, nil
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/crates/%s/%s", u.baseURL, name, version)
	}
	return fmt.Sprintf("%s/crates/%s", u.baseURL, name)
}

func (u *URLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("https://static.crates.io/crates/%s/%s-%s.crate", name, name, version)
}

func (u *URLs) Documentation(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://docs.rs/%s/%s", name, version)
	}
	return fmt.Sprintf("https://docs.rs/%s", name)
}
