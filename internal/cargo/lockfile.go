package cargo

import (
	"os"
	"sort"

	"github.com/git-pkgs/safe-pkgs/internal/core"
	toml "github.com/pelletier/go-toml/v2"
)

// lockfileParser expands Cargo.lock, which (unlike most lockfiles) is
// itself TOML, so it's parsed with the same library the configuration
// loader uses.
type lockfileParser struct{}

type cargoLockfile struct {
	Package []cargoLockPackage `toml:"package"`
}

type cargoLockPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ParseLockfile implements core.LockfileParser.
func (p *lockfileParser) ParseLockfile(path string) ([]core.PackageRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.LockfileError{Path: path, Detail: err.Error()}
	}

	var lf cargoLockfile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, &core.LockfileError{Path: path, Detail: "invalid TOML: " + err.Error()}
	}

	seen := make(map[string]bool, len(lf.Package))
	refs := make([]core.PackageRef, 0, len(lf.Package))
	for _, pkg := range lf.Package {
		if pkg.Name == "" || seen[pkg.Name] {
			continue
		}
		seen[pkg.Name] = true
		refs = append(refs, core.PackageRef{
			Registry: key,
			Name:     pkg.Name,
			Version:  pkg.Version,
		})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}
