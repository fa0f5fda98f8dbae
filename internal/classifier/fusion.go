package classifier

import "github.com/Veraticus/spice-insights/internal/model"

// DefaultFewShotWeight is the share of the combined score given to few-shot
// evidence when any exists.
const DefaultFewShotWeight = 0.7

// FusionPolicy combines zero-shot and few-shot scores into one decision.
type FusionPolicy struct {
	FewShotWeight float64
}

// DefaultFusionPolicy returns the policy with DefaultFewShotWeight.
func DefaultFusionPolicy() FusionPolicy {
	return FusionPolicy{FewShotWeight: DefaultFewShotWeight}
}

// weight is the few-shot weight applied, forced to 0 without few-shot evidence.
func (p FusionPolicy) weight(fewShot map[string]float64) float64 {
	if len(fewShot) == 0 {
		return 0
	}
	return p.FewShotWeight
}

// Combine returns (1-w)*zero + w*few for every category. zeroShot is indexed by
// category position, as produced from hypotheses built by BuildHypotheses.
func (p FusionPolicy) Combine(categories model.CategorySet, zeroShot []float64, fewShot map[string]float64) map[string]float64 {
	w := p.weight(fewShot)
	combined := make(map[string]float64, len(categories))
	for i, c := range categories {
		var z float64
		if i < len(zeroShot) {
			z = zeroShot[i]
		}
		combined[c] = (1-w)*z + w*fewShot[c]
	}
	return combined
}

// Decide selects the category with the highest combined score. Ties go to the
// category listed first. An empty category list yields "" (no decision).
func (p FusionPolicy) Decide(categories model.CategorySet, zeroShot []float64, fewShot map[string]float64) (string, map[string]float64) {
	combined := p.Combine(categories, zeroShot, fewShot)
	if len(combined) == 0 {
		if i := argmax(zeroShot); i >= 0 && i < len(categories) {
			return categories[i], combined
		}
		return "", combined
	}

	best := ""
	bestScore := 0.0
	for i, c := range categories {
		if s := combined[c]; i == 0 || s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, combined
}

func argmax(scores []float64) int {
	best := -1
	for i, s := range scores {
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	return best
}
