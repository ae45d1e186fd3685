package pypi

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// lockfileParser expands requirements.txt. Editable installs, -r
// includes, and hash-pinned lines (--hash=...) are skipped: none name a
// resolvable (name, version) pair the way a pinned "name==version" does.
type lockfileParser struct{}

var requirementLineRegex = regexp.MustCompile(`^([A-Za-z0-9][-A-Za-z0-9._]*)\s*==\s*([^\s;#]+)`)

// ParseLockfile implements core.LockfileParser.
func (p *lockfileParser) ParseLockfile(path string) ([]core.PackageRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.LockfileError{Path: path, Detail: err.Error()}
	}
	defer func() { _ = f.Close() }()

	seen := make(map[string]bool)
	var refs []core.PackageRef

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		match := requirementLineRegex.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		name := normalizeName(match[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, core.PackageRef{
			Registry: key,
			Name:     name,
			Version:  match[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &core.LockfileError{Path: path, Detail: err.Error()}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}
