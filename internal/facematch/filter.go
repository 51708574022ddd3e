package facematch

import "slices"

// Filter returns the records scoring strictly below t, in their original order.
// The input set is not modified.
func Filter(set MatchSet, t float64) MatchSet {
	result := make(MatchSet, 0, len(set))
	for _, r := range set {
		if r.Matched(t) {
			result = append(result, r)
		}
	}
	return result
}

// SortByScore returns a copy of set ordered by ascending score.
// Records with equal scores keep their original relative order.
func SortByScore(set MatchSet) MatchSet {
	sorted := slices.Clone(set)
	slices.SortStableFunc(sorted, func(a, b MatchRecord) int {
		switch {
		case a.Score < b.Score:
			return -1
		case a.Score > b.Score:
			return 1
		}
		return 0
	})
	return sorted
}
