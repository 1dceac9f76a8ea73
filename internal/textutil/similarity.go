package textutil

import "github.com/agext/levenshtein"

// Similarity returns 1 for identical normalized headlines and the
// normalized Levenshtein similarity in [0, 1] otherwise.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Match(a, b, nil)
}

// SameHeadline reports whether two normalized headlines are at least
// threshold similar. A threshold of 1 or above requires exact equality.
func SameHeadline(a, b string, threshold float64) bool {
	if threshold >= 1 {
		return a == b
	}
	return Similarity(a, b) >= threshold
}
