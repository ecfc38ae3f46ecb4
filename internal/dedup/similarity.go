package dedup

import "github.com/cleared-dev/recon/internal/normalize"

// Similarity returns the word-set Jaccard index of two normalized
// descriptions. An empty side never matches.
func Similarity(a, b string) float64 {
	ta, tb := normalize.Tokens(a), normalize.Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if a == b {
		return 1
	}

	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	union := len(set)
	inter := 0
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
