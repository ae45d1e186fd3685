package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

// TyposquatCheck flags names within a small edit distance of a popular
// package name, per §4.5. The edit-distance metric is Damerau-Levenshtein
// (adjacent-transposition aware), hand-rolled: no library in the
// retrieved pack implements the transposition-aware variant (see
// DESIGN.md).
type TyposquatCheck struct{}

func (c *TyposquatCheck) ID() core.CheckID { return "typosquat" }
func (c *TyposquatCheck) Description() string {
	return "flags package names within a small edit distance of a popular package"
}
func (c *TyposquatCheck) Priority() int              { return defaultPriority }
func (c *TyposquatCheck) RunsOnMissingPackage() bool { return true }
func (c *TyposquatCheck) RunsOnMissingVersion() bool { return true }
func (c *TyposquatCheck) NeedsWeeklyDownloads() bool { return false }
func (c *TyposquatCheck) NeedsAdvisories() bool      { return false }

func (c *TyposquatCheck) Run(ctx context.Context, ectx *ExecutionContext) ([]core.Finding, error) {
	name := ectx.Ref.Name
	popular := popularNames(ectx.Ref.Registry)

	var best string
	bestDistance := -1
	for _, candidate := range popular {
		if candidate == name {
			return nil, nil
		}
		d := damerauLevenshtein(name, candidate)
		if bestDistance == -1 || d < bestDistance {
			bestDistance = d
			best = candidate
		}
	}

	switch {
	case bestDistance == 1:
		return []core.Finding{{
			CheckID:  string(c.ID()),
			Severity: core.SeverityHigh,
			Message:  fmt.Sprintf("%s differs by one edit from popular package %s", name, best),
		}}, nil
	case bestDistance == 2 && sharesPrefix(name, best, 3):
		return []core.Finding{{
			CheckID:  string(c.ID()),
			Severity: core.SeverityMedium,
			Message:  fmt.Sprintf("%s differs by two edits from popular package %s", name, best),
		}}, nil
	default:
		return nil, nil
	}
}

func sharesPrefix(a, b string, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	return strings.EqualFold(a[:n], b[:n])
}

// damerauLevenshtein computes the optimal-string-alignment edit
// distance between a and b, counting insertions, deletions,
// substitutions, and adjacent transpositions each as one edit.
func damerauLevenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min3(
				d[i-1][j]+1,
				d[i][j-1]+1,
				d[i-1][j-1]+cost,
			)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if t := d[i-2][j-2] + 1; t < d[i][j] {
					d[i][j] = t
				}
			}
		}
	}
	return d[la][lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
