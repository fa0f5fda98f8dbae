package model

import (
	"cmp"
	"slices"
	"strings"
)

// CategoryRanking is the fused confidence that a transaction belongs to one category.
type CategoryRanking struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// CategoryRankings is an ordered confidence report.
type CategoryRankings []CategoryRanking

// Sort orders rankings by descending score. Equal scores sort by name so
// reports built from map iteration are stable.
func (r CategoryRankings) Sort() {
	slices.SortFunc(r, func(a, b CategoryRanking) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
}

// TopN returns a sorted copy of the n highest-scoring categories.
func (r CategoryRankings) TopN(n int) CategoryRankings {
	if n <= 0 {
		return CategoryRankings{}
	}
	sorted := slices.Clone(r)
	sorted.Sort()
	return sorted[:min(n, len(sorted))]
}
