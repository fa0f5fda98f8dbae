package classifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/similarity"
)

// DefaultNeighbors is the number of nearest examples consulted when none is configured.
const DefaultNeighbors = 5

// FewShot scores transactions by similarity to labeled examples.
type FewShot struct {
	embedder embeddings.Embedder
	examples []model.LabeledExample
	vectors  [][]float32
	k        int
	mu       sync.RWMutex
}

// NewFewShot embeds the initial examples. k <= 0 selects DefaultNeighbors.
func NewFewShot(ctx context.Context, embedder embeddings.Embedder, examples []model.LabeledExample, k int) (*FewShot, error) {
	if k <= 0 {
		k = DefaultNeighbors
	}
	f := &FewShot{embedder: embedder, k: k}

	examples = append([]model.LabeledExample(nil), examples...)
	vectors, err := f.embed(ctx, examples)
	if err != nil {
		return nil, err
	}
	f.examples = examples
	f.vectors = vectors
	return f, nil
}

func (f *FewShot) embed(ctx context.Context, examples []model.LabeledExample) ([][]float32, error) {
	if len(examples) == 0 {
		return nil, nil
	}
	texts := make([]string, len(examples))
	for i, ex := range examples {
		texts[i] = ex.Transaction
	}
	vectors, err := f.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed labeled examples: %w", err)
	}
	if len(vectors) != len(examples) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", common.ErrFormat, len(examples), len(vectors))
	}
	return vectors, nil
}

// Len returns the number of labeled examples.
func (f *FewShot) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.examples)
}

// Examples returns a copy of the labeled examples in insertion order.
func (f *FewShot) Examples() []model.LabeledExample {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]model.LabeledExample(nil), f.examples...)
}

// Scores returns category → weight for transaction. The weights sum to 1 when the
// accumulated similarity is positive. With no examples the map is empty and no
// embedding call is made.
func (f *FewShot) Scores(ctx context.Context, transaction string) (map[string]float64, error) {
	out, err := f.ScoresBatch(ctx, []string{transaction})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ScoresBatch scores several transactions with one embedding call.
func (f *FewShot) ScoresBatch(ctx context.Context, transactions []string) ([]map[string]float64, error) {
	f.mu.RLock()
	examples, vectors, k := f.examples, f.vectors, f.k
	f.mu.RUnlock()

	out := make([]map[string]float64, len(transactions))
	if len(examples) == 0 || len(transactions) == 0 {
		for i := range out {
			out[i] = map[string]float64{}
		}
		return out, nil
	}

	queries, err := f.embedder.EmbedDocuments(ctx, transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to embed transactions: %w", err)
	}
	if len(queries) != len(transactions) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", common.ErrFormat, len(transactions), len(queries))
	}

	for i, q := range queries {
		out[i] = accumulate(similarity.TopK(q, vectors, k), examples)
	}
	return out, nil
}

func accumulate(top []similarity.Scored, examples []model.LabeledExample) map[string]float64 {
	scores := make(map[string]float64)
	var total float64
	for _, s := range top {
		scores[examples[s.Index].Category] += s.Score
		total += s.Score
	}
	if total > 0 {
		for c := range scores {
			scores[c] /= total
		}
	}
	return scores
}

// Add appends the accepted examples and recomputes all embeddings. It returns the
// number added. Nothing is recomputed when nothing is accepted, and on an embedding
// failure the previous examples are kept.
func (f *FewShot) Add(ctx context.Context, examples []model.LabeledExample, accept func(model.LabeledExample) bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := append([]model.LabeledExample(nil), f.examples...)
	added := 0
	for _, ex := range examples {
		if accept != nil && !accept(ex) {
			continue
		}
		next = append(next, ex)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	vectors, err := f.embed(ctx, next)
	if err != nil {
		return 0, err
	}
	f.examples = next
	f.vectors = vectors
	return added, nil
}
