package classifier

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/llm"
	"github.com/Veraticus/spice-insights/internal/model"
)

// DefaultBatchSize is the number of transactions scored per chunk.
const DefaultBatchSize = 16

// BuildHypotheses returns one hypothesis per category, index-aligned with categories.
func BuildHypotheses(categories model.CategorySet, rules model.Rules) []string {
	hypotheses := make([]string, len(categories))
	for i, c := range categories {
		h := fmt.Sprintf("This is a %s expense", c)
		if rule, ok := rules.Lookup(c); ok {
			h += fmt.Sprintf(" (%s)", rule)
		}
		hypotheses[i] = h
	}
	return hypotheses
}

// ZeroShotScorer scores transactions against hypotheses. The result holds one
// distribution per transaction, index-aligned with hypotheses.
type ZeroShotScorer interface {
	Score(ctx context.Context, transactions []string, hypotheses []string) ([][]float64, error)
}

// OracleScorer scores hypotheses by asking a generative model, one call per transaction.
type OracleScorer struct {
	model       llms.Model
	concurrency int
}

// NewOracleScorer creates a scorer issuing at most concurrency calls at once.
func NewOracleScorer(m llms.Model, concurrency int) *OracleScorer {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &OracleScorer{model: m, concurrency: concurrency}
}

// Score implements ZeroShotScorer. Any failed transaction fails the whole call.
func (s *OracleScorer) Score(ctx context.Context, transactions []string, hypotheses []string) ([][]float64, error) {
	out := make([][]float64, len(transactions))
	if len(hypotheses) == 0 {
		for i := range out {
			out[i] = []float64{}
		}
		return out, nil
	}

	errs := make([]error, len(transactions))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, t := range transactions {
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			out[i], errs[i] = s.scoreOne(ctx, t, hypotheses)
		}(i, t)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to score %q: %w", transactions[i], err)
		}
	}
	return out, nil
}

func (s *OracleScorer) scoreOne(ctx context.Context, transaction string, hypotheses []string) ([]float64, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, s.model, buildScoringPrompt(transaction, hypotheses),
		llms.WithTemperature(0))
	if err != nil {
		return nil, err
	}
	return parseScores(text, len(hypotheses))
}

func buildScoringPrompt(transaction string, hypotheses []string) string {
	var sb strings.Builder
	sb.WriteString("You are a zero-shot classifier for bank transactions.\n")
	sb.WriteString("Score how well each numbered hypothesis describes the transaction.\n\n")
	sb.WriteString(fmt.Sprintf("Transaction: %q\n\nHypotheses:\n", transaction))
	for i, h := range hypotheses {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, h))
	}
	sb.WriteString(fmt.Sprintf(`
Exactly one hypothesis is true. Respond with only a JSON object of the form
{"scores": [s1, s2, ...]} holding %d probabilities between 0 and 1, in hypothesis order, summing to 1.`,
		len(hypotheses)))
	return sb.String()
}

func parseScores(text string, n int) ([]float64, error) {
	var obj struct {
		Scores []float64 `json:"scores"`
	}
	var scores []float64
	if err := llm.DecodeJSON(text, &obj); err == nil && obj.Scores != nil {
		scores = obj.Scores
	} else {
		var arr []float64
		if arrErr := llm.DecodeJSON(text, &arr); arrErr != nil {
			return nil, fmt.Errorf("%w: unreadable scores: %q", common.ErrFormat, text)
		}
		scores = arr
	}
	if len(scores) != n {
		return nil, fmt.Errorf("%w: expected %d scores, got %d", common.ErrFormat, n, len(scores))
	}
	return normalize(scores), nil
}

// normalize rescales to sum 1 whatever scale the oracle answered on. Negative,
// NaN and infinite scores count as 0; an all-zero vector becomes uniform.
func normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	var total float64
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			s = 0
		}
		out[i] = s
		total += s
	}
	if total == 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}
