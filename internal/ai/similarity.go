package ai

import (
	"strings"
	"unicode"
)

// similarityThreshold marks a candidate reply as a near-duplicate of a
// previously used one.
const similarityThreshold = 0.85

// Normalize lowercases, strips punctuation and collapses whitespace so that
// trivially restyled duplicates still compare equal.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TooSimilar reports whether the candidate matches any previously used reply
// exactly or with token-sequence similarity at or above the threshold.
func TooSimilar(candidate string, avoid []string) bool {
	normalized := Normalize(candidate)
	if normalized == "" {
		return false
	}
	for _, used := range avoid {
		if candidate == used {
			return true
		}
		other := Normalize(used)
		if normalized == other {
			return true
		}
		if SimilarityRatio(normalized, other) >= similarityThreshold {
			return true
		}
	}
	return false
}

// SimilarityRatio computes a token-sequence similarity in [0, 1]: twice the
// length of the longest common token subsequence over the total token count.
func SimilarityRatio(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	// Single-row LCS over tokens.
	prev := make([]int, len(tokensB)+1)
	current := make([]int, len(tokensB)+1)
	for i := 1; i <= len(tokensA); i++ {
		for j := 1; j <= len(tokensB); j++ {
			if tokensA[i-1] == tokensB[j-1] {
				current[j] = prev[j-1] + 1
			} else if prev[j] >= current[j-1] {
				current[j] = prev[j]
			} else {
				current[j] = current[j-1]
			}
		}
		prev, current = current, prev
	}
	lcs := prev[len(tokensB)]

	return 2 * float64(lcs) / float64(len(tokensA)+len(tokensB))
}
