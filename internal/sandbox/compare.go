package sandbox

import (
	"fmt"
	"strings"
)

// Mode selects the strategy used to score actual output against expected.
type Mode string

const (
	ModeExact    Mode = "exact"
	ModeFuzzy    Mode = "fuzzy"
	ModeContains Mode = "contains"

	// FuzzyThreshold is the minimum similarity ratio that counts as a
	// fuzzy match.
	FuzzyThreshold = 0.8
)

// ParseMode normalizes a mode string, defaulting to exact.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeExact, "":
		return ModeExact, true
	case ModeFuzzy:
		return ModeFuzzy, true
	case ModeContains:
		return ModeContains, true
	default:
		return Mode(s), false
	}
}

// Comparison scores one actual-vs-expected pair.
type Comparison struct {
	Mode       Mode    `json:"mode"`
	Match      bool    `json:"match"`
	Similarity float64 `json:"similarity"`
	Details    string  `json:"details"`
}

// Compare scores actual against expected under the given mode. Trailing and
// leading whitespace is trimmed first so a final newline from print() does
// not defeat the comparison.
func Compare(actual, expected string, mode Mode) Comparison {
	a := strings.TrimSpace(actual)
	e := strings.TrimSpace(expected)

	switch mode {
	case ModeExact:
		if a == e {
			return Comparison{Mode: mode, Match: true, Similarity: 1.0, Details: "output matches exactly"}
		}
		sim := similarityRatio(a, e)
		return Comparison{
			Mode:       mode,
			Match:      false,
			Similarity: 0.0,
			Details:    diffDetails(a, e, sim),
		}

	case ModeFuzzy:
		sim := similarityRatio(a, e)
		if sim >= FuzzyThreshold {
			return Comparison{
				Mode:       mode,
				Match:      true,
				Similarity: sim,
				Details:    fmt.Sprintf("output matches with %.1f%% similarity", sim*100),
			}
		}
		return Comparison{
			Mode:       mode,
			Match:      false,
			Similarity: sim,
			Details:    fmt.Sprintf("output only %.1f%% similar, need at least %.0f%%", sim*100, FuzzyThreshold*100),
		}

	case ModeContains:
		if strings.Contains(a, e) {
			return Comparison{Mode: mode, Match: true, Similarity: 1.0, Details: "output contains expected text"}
		}
		return Comparison{
			Mode:       mode,
			Match:      false,
			Similarity: 0.0,
			Details:    fmt.Sprintf("output does not contain expected text %q", e),
		}

	default:
		return Comparison{Mode: mode, Details: fmt.Sprintf("unknown comparison mode: %s", mode)}
	}
}

// similarityRatio is a longest-common-subsequence ratio in [0,1]:
// 2*LCS(a,b) / (len(a)+len(b)). Identical strings score 1.0, disjoint 0.0.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2.0 * float64(lcs) / float64(len(ra)+len(rb))
}

func diffDetails(actual, expected string, sim float64) string {
	return fmt.Sprintf("output does not match\nexpected: %s\ngot: %s\nsimilarity: %.1f%%",
		preview(expected), preview(actual), sim*100)
}

func preview(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
