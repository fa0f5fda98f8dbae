// Package similarity provides vector similarity and ranking helpers shared by
// the example store and the few-shot classifier.
package similarity

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b. Mismatched lengths and
// zero-norm vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Scored pairs a candidate index with its similarity to a query.
type Scored struct {
	Index int
	Score float64
}

// TopK scores every candidate against query and returns the k best, most
// similar first. Equal scores keep candidate order. k <= 0 or k larger than
// the candidate count selects every candidate.
func TopK(query []float32, candidates [][]float32, k int) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Index: i, Score: Cosine(query, c)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
