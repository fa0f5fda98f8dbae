// Package classifier assigns spending categories to transaction descriptions by
// fusing zero-shot hypothesis scores with few-shot similarity to labeled examples.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/service"
)

// Options configures an ExpenseClassifier.
type Options struct {
	Rules      model.Rules
	Categories model.CategorySet
	Examples   []model.LabeledExample
	Policy     FusionPolicy
	Neighbors  int
	BatchSize  int
}

// ExpenseClassifier is the hybrid zero-shot / few-shot classifier.
type ExpenseClassifier struct {
	scorer     ZeroShotScorer
	fewShot    *FewShot
	rules      model.Rules
	categories model.CategorySet
	policy     FusionPolicy
	batchSize  int
	mu         sync.RWMutex
}

var _ service.BatchClassifier = (*ExpenseClassifier)(nil)

// New builds a classifier and embeds its initial examples. Examples whose category
// is not configured are dropped.
func New(ctx context.Context, opts Options, scorer ZeroShotScorer, embedder embeddings.Embedder) (*ExpenseClassifier, error) {
	if len(opts.Categories) == 0 {
		return nil, fmt.Errorf("%w: at least one category is required", common.ErrValidation)
	}
	if opts.Policy.FewShotWeight < 0 || opts.Policy.FewShotWeight > 1 {
		return nil, fmt.Errorf("%w: few-shot weight must be between 0 and 1, got %.2f",
			common.ErrValidation, opts.Policy.FewShotWeight)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	rules := make(model.Rules, len(opts.Rules))
	for k, v := range opts.Rules {
		rules.Set(k, v)
	}

	c := &ExpenseClassifier{
		scorer:     scorer,
		rules:      rules,
		categories: append(model.CategorySet(nil), opts.Categories...),
		policy:     opts.Policy,
		batchSize:  opts.BatchSize,
	}

	var initial []model.LabeledExample
	for _, ex := range opts.Examples {
		if c.acceptExample(ex) {
			initial = append(initial, ex)
		} else {
			slog.Warn("Skipping labeled example", "transaction", ex.Transaction, "category", ex.Category)
		}
	}

	fs, err := NewFewShot(ctx, embedder, initial, opts.Neighbors)
	if err != nil {
		return nil, err
	}
	c.fewShot = fs
	return c, nil
}

func (c *ExpenseClassifier) acceptExample(ex model.LabeledExample) bool {
	return strings.TrimSpace(ex.Transaction) != "" && c.categories.Contains(ex.Category)
}

// Categories returns the configured categories in order.
func (c *ExpenseClassifier) Categories() model.CategorySet {
	return append(model.CategorySet(nil), c.categories...)
}

// Examples returns the current labeled examples.
func (c *ExpenseClassifier) Examples() []model.LabeledExample {
	return c.fewShot.Examples()
}

// Hypotheses returns the current hypothesis list, index-aligned with Categories.
func (c *ExpenseClassifier) Hypotheses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return BuildHypotheses(c.categories, c.rules)
}

// Classify returns one category per transaction, in input order.
func (c *ExpenseClassifier) Classify(ctx context.Context, transactions []string) ([]string, error) {
	decisions, err := c.ClassifyBatch(ctx, transactions)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(decisions))
	for i, d := range decisions {
		out[i] = d.Category
	}
	return out, nil
}

// ClassifyBatch classifies transactions in chunks of the configured batch size.
func (c *ExpenseClassifier) ClassifyBatch(ctx context.Context, transactions []string) ([]model.Decision, error) {
	hypotheses := c.Hypotheses()
	decisions := make([]model.Decision, 0, len(transactions))

	for start := 0; start < len(transactions); start += c.batchSize {
		end := min(start+c.batchSize, len(transactions))
		chunk := transactions[start:end]

		zero, err := c.scorer.Score(ctx, chunk, hypotheses)
		if err != nil {
			return nil, fmt.Errorf("zero-shot scoring failed: %w", err)
		}
		if len(zero) != len(chunk) {
			return nil, fmt.Errorf("%w: scorer returned %d results for %d transactions",
				common.ErrFormat, len(zero), len(chunk))
		}

		few, err := c.fewShot.ScoresBatch(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("few-shot scoring failed: %w", err)
		}

		for i, t := range chunk {
			category, scores := c.policy.Decide(c.categories, zero[i], few[i])
			decisions = append(decisions, model.Decision{
				Transaction: t,
				Category:    category,
				Scores:      scores,
				FewShotUsed: len(few[i]) > 0,
			})
		}
	}
	return decisions, nil
}

// ConfidenceScores returns the combined score of every category for one
// transaction without committing to a label.
func (c *ExpenseClassifier) ConfidenceScores(ctx context.Context, transaction string) (map[string]float64, error) {
	decisions, err := c.ClassifyBatch(ctx, []string{transaction})
	if err != nil {
		return nil, err
	}
	return decisions[0].Scores, nil
}

// AddExamples adds labeled examples, skipping any with an unknown category or
// empty text, and returns the number added. Embeddings are recomputed only when
// something was added.
func (c *ExpenseClassifier) AddExamples(ctx context.Context, examples []model.LabeledExample) (int, error) {
	return c.fewShot.Add(ctx, examples, c.acceptExample)
}

// AddRule sets the rule text for a configured category. It reports false when the
// category is unknown.
func (c *ExpenseClassifier) AddRule(category, rule string) bool {
	if !c.categories.Contains(category) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules.Set(category, rule)
	return true
}
