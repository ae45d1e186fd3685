// Package pypi provides a registry provider for pypi.org.
package pypi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const (
	DefaultURL       = "https://pypi.org"
	StatsAPIURL      = "https://pypistats.org"
	key              = "pypi"
)

func init() {
	core.Register(key, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

// Registry is the PyPI registry provider.
type Registry struct {
	baseURL     string
	statsURL    string
	client      *core.Client
	urls        *URLs
}

// New creates a PyPI registry client against baseURL (or DefaultURL if empty).
func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	r := &Registry{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		statsURL: StatsAPIURL,
		client:   client,
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

type packageResponse struct {
	Info     infoBlock                `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type infoBlock struct {
	Name              string            `json:"name"`
	Summary           string            `json:"summary"`
	HomePage          string            `json:"home_page"`
	License           string            `json:"license"`
	LicenseExpression string            `json:"license_expression"`
	Version           string            `json:"version"`
	Classifiers       []string          `json:"classifiers"`
	ProjectURLs       map[string]string `json:"project_urls"`
	Maintainer        string            `json:"maintainer"`
	Author            string            `json:"author"`
}

type releaseFile struct {
	Digests      map[string]string `json:"digests"`
	URL          string            `json:"url"`
	UploadTime   string            `json:"upload_time"`
	Yanked       bool              `json:"yanked"`
	YankedReason string            `json:"yanked_reason"`
}

type statsResponse struct {
	Data struct {
		LastWeek int64 `json:"last_week"`
	} `json:"data"`
}

func (r *Registry) fetchPackageResponse(ctx context.Context, name string) (*packageResponse, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", r.baseURL, name)

	var resp packageResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMetadata implements core.Registry.
func (r *Registry) FetchMetadata(ctx context.Context, name, version string) (*core.PackageMetadata, error) {
	resp, err := r.fetchPackageResponse(ctx, name)
	if err != nil {
		if httpErr, ok := err.(*core.HTTPError); ok && httpErr.IsNotFound() {
			return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
		}
		return nil, err
	}

	latestVersion := resp.Info.Version

	resolvedVersion := version
	if resolvedVersion == "" {
		resolvedVersion = latestVersion
	}

	files, ok := resp.Releases[resolvedVersion]
	if !ok && version != "" {
		return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
	}

	knownVersions := make([]string, 0, len(resp.Releases))
	for num := range resp.Releases {
		knownVersions = append(knownVersions, num)
	}

	var publishedAt time.Time
	if len(files) > 0 && files[0].UploadTime != "" {
		publishedAt, _ = time.Parse("2006-01-02T15:04:05", files[0].UploadTime)
	}

	var publishers []string
	if resp.Info.Maintainer != "" {
		publishers = append(publishers, resp.Info.Maintainer)
	} else if resp.Info.Author != "" {
		publishers = append(publishers, resp.Info.Author)
	}

	var weeklyDownloads *int64
	if downloads, ok, err := r.fetchWeeklyDownloads(ctx, name); err == nil && ok {
		weeklyDownloads = &downloads
	}

	return &core.PackageMetadata{
		Registry:         key,
		Name:             strings.ToLower(name),
		Exists:           true,
		RequestedVersion: version,
		LatestVersion:    latestVersion,
		PublishedAt:      publishedAt,
		WeeklyDownloads:  weeklyDownloads,
		HasInstallScript: core.Unknown,
		KnownVersions:    knownVersions,
		Publishers:       publishers,
		Licenses:         core.NormalizeLicense(extractLicense(resp.Info)),
		Homepage:         extractHomepage(resp.Info.ProjectURLs, resp.Info.HomePage),
		Repository:       extractRepoURL(resp.Info.ProjectURLs, resp.Info.HomePage),
	}, nil
}

// fetchWeeklyDownloads queries pypistats.org's public recent-downloads
// API. PyPI itself only reports per-release file counts, not an
// aggregate popularity figure, so this is a second HTTP call against a
// separate public service.
func (r *Registry) fetchWeeklyDownloads(ctx context.Context, name string) (int64, bool, error) {
	url := fmt.Sprintf("%s/api/packages/%s/recent", r.statsURL, name)

	var resp statsResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		if httpErr, ok := err.(*core.HTTPError); ok && httpErr.IsNotFound() {
			return 0, false, nil
		}
		return 0, false, err
	}
	return resp.Data.LastWeek, true, nil
}

func extractRepoURL(projectURLs map[string]string, homePage string) string {
	priorityKeys := []string{"Repository", "Source", "Source Code", "Code"}
	for _, k := range priorityKeys {
		if u, ok := projectURLs[k]; ok && u != "" && isRepoURL(u) {
			return u
		}
	}
	for _, u := range projectURLs {
		if isRepoURL(u) && !strings.Contains(u, "github.com/sponsors") {
			return u
		}
	}
	if isRepoURL(homePage) {
		return homePage
	}
	return ""
}

func extractHomepage(projectURLs map[string]string, homePage string) string {
	if homePage != "" {
		return homePage
	}
	if u, ok := projectURLs["Homepage"]; ok {
		return u
	}
	if u, ok := projectURLs["Home"]; ok {
		return u
	}
	return ""
}

func isRepoURL(u string) bool {
	return strings.Contains(u, "github.com") ||
		strings.Contains(u, "gitlab.com") ||
		strings.Contains(u, "bitbucket.org") ||
		strings.Contains(u, "codeberg.org")
}

func extractLicense(info infoBlock) string {
	if info.LicenseExpression != "" {
		return info.LicenseExpression
	}
	if info.License != "" {
		return info.License
	}
	for _, classifier := range info.Classifiers {
		if strings.HasPrefix(classifier, "License :: ") {
			parts := strings.Split(classifier, " :: ")
			if len(parts) > 0 {
				return parts[len(parts)-1]
			}
		}
	}
	return ""
}

// normalizeName applies PEP 503 name normalization.
func normalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, ".", "-")
	return name
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/project/%s/%s/", u.baseURL, name, version)
	}
	return fmt.Sprintf("%s/project/%s/", u.baseURL, name)
}

func (u *URLs) Download(name, version string) string {
	return ""
}

func (u *URLs) Documentation(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://%s.readthedocs.io/en/%s/", name, version)
	}
	return fmt.Sprintf("https://%s.readthedocs.io/", name)
}
