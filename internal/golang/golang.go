// Package golang provides a registry provider for the Go module proxy.
package golang

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const (
	DefaultURL = "https://proxy.golang.org"
	key        = "golang"
)

func init() {
	core.Register(key, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

// Registry is the Go module proxy registry provider.
type Registry struct {
	baseURL string
	client  *core.Client
	urls    *URLs
}

// New creates a Go module proxy client against baseURL (or DefaultURL if empty).
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

// LockfileParser implements core.Registry. The goproxy protocol has no
// concept of install/postinstall hooks and go.sum pins module hashes,
// not expandable (name, version) manifest entries the way go.mod's
// require block does: parsing go.mod reliably needs module-graph
// resolution this provider doesn't perform, so lockfile expansion is
// left unsupported here.
func (r *Registry) LockfileParser() core.LockfileParser { return nil }

// encodeForProxy encodes a module path according to the goproxy protocol:
// capital letters become "!" followed by the lowercase letter.
// https://go.dev/ref/mod#goproxy-protocol
func encodeForProxy(path string) string {
	var b strings.Builder
	for _, r := range path {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune('!')
			b.WriteRune(r + 32)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type versionInfo struct {
	Version string    `json:"Version"`
	Time    time.Time `json:"Time"`
}

// FetchMetadata implements core.Registry.
func (r *Registry) FetchMetadata(ctx context.Context, name, version string) (*core.PackageMetadata, error) {
	encoded := encodeForProxy(name)

	listURL := fmt.Sprintf("%s/%s/@v/list", r.baseURL, encoded)
	listBody, err := r.client.GetText(ctx, listURL)
	if err != nil {
		var httpErr *core.HTTPError
		if asHTTPError(err, &httpErr) && httpErr.IsNotFound() {
			return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
		}
		return nil, err
	}

	var latestVersion string
	latestBody, err := r.client.GetBody(ctx, fmt.Sprintf("%s/%s/@latest", r.baseURL, encoded))
	if err != nil {
		var httpErr *core.HTTPError
		if !asHTTPError(err, &httpErr) || !httpErr.IsNotFound() {
			return nil, err
		}
	} else {
		var latest versionInfo
		if err := json.Unmarshal(latestBody, &latest); err != nil {
			return nil, &core.MalformedError{Registry: key, Detail: err.Error()}
		}
		latestVersion = latest.Version
	}

	knownVersions := splitVersionList(listBody)
	if latestVersion == "" && len(knownVersions) == 0 {
		return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
	}
	if latestVersion == "" {
		latestVersion = knownVersions[0]
	}

	resolvedVersion := version
	if resolvedVersion == "" {
		resolvedVersion = latestVersion
	}

	var publishedAt time.Time
	infoURL := fmt.Sprintf("%s/%s/@v/%s.info", r.baseURL, encoded, resolvedVersion)
	infoBody, err := r.client.GetBody(ctx, infoURL)
	if err != nil {
		var httpErr *core.HTTPError
		if asHTTPError(err, &httpErr) && httpErr.IsNotFound() {
			if version != "" {
				return &core.PackageMetadata{Registry: key, Name: name, Exists: false}, nil
			}
		} else {
			return nil, err
		}
	} else {
		var info versionInfo
		if err := json.Unmarshal(infoBody, &info); err == nil {
			publishedAt = info.Time
		}
	}

	return &core.PackageMetadata{
		Registry:         key,
		Name:             name,
		Exists:           true,
		RequestedVersion: version,
		LatestVersion:    latestVersion,
		PublishedAt:      publishedAt,
		WeeklyDownloads:  nil,
		HasInstallScript: core.Unknown,
		KnownVersions:    knownVersions,
		Publishers:       nil,
		Homepage:         deriveRepoURL(name),
		Repository:       deriveRepoURL(name),
	}, nil
}

func splitVersionList(body string) []string {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	versions := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			versions = append(versions, line)
		}
	}
	return versions
}

func deriveRepoURL(modulePath string) string {
	if strings.HasPrefix(modulePath, "github.com/") ||
		strings.HasPrefix(modulePath, "gitlab.com/") ||
		strings.HasPrefix(modulePath, "bitbucket.org/") {
		parts := strings.Split(modulePath, "/")
		if len(parts) >= 3 {
			return "https://" + strings.Join(parts[:3], "/")
		}
	}
	return "https://" + modulePath
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
		return fmt.Sprintf("https://pkg.go.dev/%s@%s", name, version)
	}
	return fmt.Sprintf("https://pkg.go.dev/%s", name)
}

func (u *URLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/@v/%s.zip", u.baseURL, encodeForProxy(name), version)
}

func (u *URLs) Documentation(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://pkg.go.dev/%s@%s#section-documentation", name, version)
	}
	return fmt.Sprintf("https://pkg.go.dev/%s#section-documentation", name)
}
