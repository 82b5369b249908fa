package eats

import (
	"cmp"
	"slices"
)

// Rank returns a new slice ordered by parsed price ascending, then distance
// ascending. The sort is stable and the input slice is not modified.
func Rank(entries []Entry) []Entry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, compareEntries)
	return out
}

func compareEntries(a, b Entry) int {
	if c := cmp.Compare(ParsePrice(a.Price), ParsePrice(b.Price)); c != 0 {
		return c
	}
	return cmp.Compare(a.DistanceKm, b.DistanceKm)
}

// IsRanked reports whether entries are already in Rank order.
func IsRanked(entries []Entry) bool {
	return slices.IsSortedFunc(entries, compareEntries)
}
