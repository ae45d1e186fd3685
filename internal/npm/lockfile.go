package npm

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// lockfileParser expands a package.json's direct dependencies. npm's
// package-lock.json format varies across lockfile versions (v1/v2/v3
// nest differently); package.json's flat dependency maps are the one
// shape stable enough to expand without a version-specific parser.
type lockfileParser struct{}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// ParseLockfile implements core.LockfileParser.
func (p *lockfileParser) ParseLockfile(path string) ([]core.PackageRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.LockfileError{Path: path, Detail: err.Error()}
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, &core.LockfileError{Path: path, Detail: "invalid JSON: " + err.Error()}
	}

	names := make([]string, 0, len(pkg.Dependencies)+len(pkg.DevDependencies))
	versions := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name, version := range pkg.Dependencies {
		names = append(names, name)
		versions[name] = version
	}
	for name, version := range pkg.DevDependencies {
		if _, ok := versions[name]; !ok {
			names = append(names, name)
			versions[name] = version
		}
	}
	sort.Strings(names)

	refs := make([]core.PackageRef, 0, len(names))
	for _, name := range names {
		refs = append(refs, core.PackageRef{
			Registry: key,
			Name:     name,
			Version:  normalizeVersionSpec(versions[name]),
		})
	}
	return refs, nil
}

// normalizeVersionSpec strips the range operators npm allows in
// package.json ("^1.2.3", "~1.2.3", ">=1.2.3") down to a bare version,
// since FetchMetadata expects an exact version or empty for "latest".
func normalizeVersionSpec(spec string) string {
	for len(spec) > 0 {
		c := spec[0]
		if c == '^' || c == '~' || c == '>' || c == '<' || c == '=' || c == ' ' {
			spec = spec[1:]
			continue
		}
		break
	}
	return spec
}
