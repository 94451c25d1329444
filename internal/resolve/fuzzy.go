package resolve

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity is the case-insensitive SequenceMatcher ratio of a and b.
func Similarity(a, b string) float64 {
	ca := strings.Split(strings.ToLower(strings.TrimSpace(a)), "")
	cb := strings.Split(strings.ToLower(strings.TrimSpace(b)), "")
	if len(ca) == 0 && len(cb) == 0 {
		return 1
	}
	return difflib.NewMatcher(ca, cb).Ratio()
}

// BestMatch returns the single candidate most similar to query, if it
// reaches threshold. Earlier candidates win ties.
func BestMatch(query string, candidates []string, threshold float64) (string, float64, bool) {
	if strings.TrimSpace(query) == "" {
		return "", 0, false
	}
	best, bestScore := "", -1.0
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if s := Similarity(query, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	if best == "" || bestScore < threshold {
		return "", 0, false
	}
	return best, bestScore, true
}
