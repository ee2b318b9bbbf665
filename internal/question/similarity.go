package question

import (
	"regexp"
	"strings"
)

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+(?:'[\p{L}\p{N}]+)?`)

// Tokens lowercases, splits and keeps significant tokens (length > 2).
func Tokens(s string) []string {
	raw := wordRE.FindAllString(strings.ToLower(s), -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) > 2 {
			out = append(out, t)
		}
	}
	return out
}

// TokenSet returns the deduplicated significant-token set.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokens(s) {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard is |A∩B| / |A∪B| over significant-token sets. Two empty sets are
// treated as dissimilar, not identical, so blank strings never count as
// duplicates.
func Jaccard(a, b string) float64 {
	sa := TokenSet(a)
	sb := TokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// OverlapCount counts tokens of a that also occur in b.
func OverlapCount(a, b string) int {
	sb := TokenSet(b)
	n := 0
	for t := range TokenSet(a) {
		if _, ok := sb[t]; ok {
			n++
		}
	}
	return n
}

// OverlapRatio is |A∩B| / |A|, the share of a's tokens covered by b.
func OverlapRatio(a, b string) float64 {
	sa := TokenSet(a)
	if len(sa) == 0 {
		return 0
	}
	return float64(OverlapCount(a, b)) / float64(len(sa))
}

func normalizeText(s string) string {
	return strings.Join(Tokens(s), " ")
}
