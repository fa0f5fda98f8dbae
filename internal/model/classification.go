// Package model defines the core domain models used throughout the application.
package model

// Decision is the outcome of classifying one transaction description.
type Decision struct {
	Transaction string
	Category    string
	// Scores holds the fused score for every configured category.
	Scores map[string]float64
	// FewShotUsed is true when labeled examples contributed to the scores.
	FewShotUsed bool
}

// Rankings converts the decision scores into a sorted ranking list.
func (d Decision) Rankings() CategoryRankings {
	rankings := make(CategoryRankings, 0, len(d.Scores))
	for category, score := range d.Scores {
		rankings = append(rankings, CategoryRanking{Category: category, Score: score})
	}
	rankings.Sort()
	return rankings
}
