// Package lockfile dispatches a project file to the owning registry's
// LockfileParser, per §4.7. Each registry package knows its own
// manifest format; this package only does the registry lookup and the
// "no parser for this registry" translation into UnsupportedError.
package lockfile

import (
	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// Expand resolves registryKey to a provider and runs its LockfileParser
// against path. An unknown registry, or one with no lockfile support,
// both surface as *core.UnsupportedError.
func Expand(client *core.Client, registryKey, path string) ([]core.PackageRef, error) {
	reg, err := core.New(registryKey, "", client)
	if err != nil {
		return nil, err
	}

	parser := reg.LockfileParser()
	if parser == nil {
		return nil, &core.UnsupportedError{Reason: "registry " + registryKey + " has no lockfile expansion support"}
	}

	return parser.ParseLockfile(path)
}

// defaultManifestNames maps a registry key to the conventional manifest
// filename checked in a project's working directory when no explicit
// path is given (§6's optional check_lockfile "path" parameter).
var defaultManifestNames = map[string]string{
	"npm":    "package.json",
	"cargo":  "Cargo.lock",
	"pypi":   "requirements.txt",
	"gem":    "Gemfile.lock",
	"golang": "go.mod",
}

// DefaultPath returns the conventional manifest filename for registryKey,
// or "" if the registry has no well-known default.
func DefaultPath(registryKey string) string {
	return defaultManifestNames[registryKey]
}
