package checks

import (
	"bufio"
	"bytes"
	"embed"
	"strings"
)

//go:embed corpus/*.txt
var corpusFS embed.FS

// popularNames returns the embedded corpus of well-known package names
// for registry, used by the typosquat check. The corpus is a
// representative sample of roughly 50–100 names per registry, not a
// live top-N fetch —
// §9's Open Questions chooses an embedded corpus to keep the check
// deterministic offline.
func popularNames(registry string) []string {
	data, err := corpusFS.ReadFile("corpus/" + registry + ".txt")
	if err != nil {
		return nil
	}

	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
