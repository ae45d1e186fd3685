package checks

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// parseSemver parses s as a semver version, tolerating a leading "v"
// and progressively trimming trailing dot-separated segments beyond
// major.minor.patch (some ecosystems, notably Python, publish
// versions like "2024.1.15.2"). Returns ok=false when neither s nor
// any prefix of it with at least three dot-separated segments parses
// as semver.
func parseSemver(s string) (*semver.Version, bool) {
	trimmed := strings.TrimPrefix(s, "v")
	if v, err := semver.NewVersion(trimmed); err == nil {
		return v, true
	}

	segments := strings.Split(trimmed, ".")
	for end := len(segments) - 1; end >= 3; end-- {
		candidate := strings.Join(segments[:end], ".")
		if v, err := semver.NewVersion(candidate); err == nil {
			return v, true
		}
	}
	return nil, false
}

// versionGap reports how many major and minor releases separate from
// (the older version) and to (the newer version). When both parse as
// semver the gap is exact. When either side fails to parse, it falls
// back to lexicographicLess (§4.5's "deterministic fallback ...
// lexicographic with numeric-run comparison"): from is reported as
// exactly one major version behind to when it orders before it, since
// arbitrary strings carry no major/minor structure to count precisely.
// ok is always true for two non-empty inputs; it only reports false
// when comparison is impossible (an empty version string on either side).
func versionGap(from, to string) (majorBehind, minorBehind int, sameMajor bool, ok bool) {
	if from == "" || to == "" {
		return 0, 0, false, false
	}

	if fv, fok := parseSemver(from); fok {
		if tv, tok := parseSemver(to); tok {
			majorBehind = int(tv.Major()) - int(fv.Major())
			if majorBehind < 0 {
				majorBehind = 0
			}
			sameMajor = tv.Major() == fv.Major()
			minorBehind = int(tv.Minor()) - int(fv.Minor())
			if minorBehind < 0 {
				minorBehind = 0
			}
			return majorBehind, minorBehind, sameMajor, true
		}
	}

	if from == to {
		return 0, 0, true, true
	}
	if lexicographicLess(from, to) {
		return 1, 0, false, true
	}
	return 0, 0, false, true
}

// lexicographicLess provides a deterministic ordering fallback for
// version strings that don't parse as semver: compares numeric runs
// numerically and everything else byte-by-byte, so "rc9" < "rc10".
func lexicographicLess(a, b string) bool {
	ai, bi := 0, 0
	for ai < len(a) && bi < len(b) {
		ac, bc := a[ai], b[bi]
		if isDigit(ac) && isDigit(bc) {
			aNum, aNext := scanNumber(a, ai)
			bNum, bNext := scanNumber(b, bi)
			if aNum != bNum {
				return aNum < bNum
			}
			ai, bi = aNext, bNext
			continue
		}
		if ac != bc {
			return ac < bc
		}
		ai++
		bi++
	}
	return len(a)-ai < len(b)-bi
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func scanNumber(s string, start int) (int64, int) {
	end := start
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	n, _ := strconv.ParseInt(s[start:end], 10, 64)
	return n, end
}
