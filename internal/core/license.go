package core

import "strings"

// spdxAliases maps common non-canonical license spellings, as reported
// raw by registry APIs, to their SPDX identifier. Not exhaustive; covers
// the handful of spellings the supported registries actually emit.
var spdxAliases = map[string]string{
	"apache 2.0":      "Apache-2.0",
	"apache-2":        "Apache-2.0",
	"apache2":         "Apache-2.0",
	"apache license":  "Apache-2.0",
	"bsd":             "BSD-3-Clause",
	"bsd license":     "BSD-3-Clause",
	"gpl":             "GPL-3.0-only",
	"gplv2":           "GPL-2.0-only",
	"gplv3":           "GPL-3.0-only",
	"lgpl":            "LGPL-3.0-only",
	"mit license":     "MIT",
	"mozilla public":  "MPL-2.0",
	"new bsd license": "BSD-3-Clause",
}

// NormalizeLicense canonicalizes a raw, registry-reported license string
// into its SPDX identifier where the spelling is recognized. Compound
// expressions ("MIT OR Apache-2.0") and already-canonical identifiers
// pass through unchanged; unrecognized single-license spellings are
// returned as-is rather than dropped, since a best-effort label is more
// useful to a caller than no label.
func NormalizeLicense(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.ContainsAny(raw, "()") || containsAny(raw, " OR ", " AND ", " WITH ") {
		return raw
	}
	if canon, ok := spdxAliases[strings.ToLower(raw)]; ok {
		return canon
	}
	return raw
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
