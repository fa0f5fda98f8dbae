package classifier

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// axisEmbedder maps each known word to its own axis so similarity is predictable.
type axisEmbedder struct {
	axes      map[string][]float32
	docCalls  int
	textsSeen int
	mu        sync.Mutex
}

func newAxisEmbedder() *axisEmbedder {
	return &axisEmbedder{axes: map[string][]float32{
		"netflix": {1, 0, 0},
		"spotify": {0.9, 0.1, 0},
		"tesco":   {0, 1, 0},
		"aldi":    {0, 0.95, 0.05},
		"uber":    {0, 0, 1},
	}}
}

func (e *axisEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	for word, v := range e.axes {
		if strings.Contains(lower, word) {
			return v
		}
	}
	return []float32{0.3, 0.3, 0.3}
}

func (e *axisEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.docCalls++
	e.textsSeen += len(texts)
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *axisEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// tableScorer returns fixed distributions keyed by transaction text.
type tableScorer struct {
	table    map[string][]float64
	fallback []float64
	batches  [][]string
	mu       sync.Mutex
}

func (s *tableScorer) Score(_ context.Context, transactions []string, hypotheses []string) ([][]float64, error) {
	s.mu.Lock()
	s.batches = append(s.batches, append([]string(nil), transactions...))
	s.mu.Unlock()
	out := make([][]float64, len(transactions))
	for i, t := range transactions {
		if v, ok := s.table[t]; ok {
			out[i] = v
			continue
		}
		if s.fallback != nil {
			out[i] = s.fallback
			continue
		}
		uniform := make([]float64, len(hypotheses))
		for j := range uniform {
			uniform[j] = 1 / float64(len(hypotheses))
		}
		out[i] = uniform
	}
	return out, nil
}

// scriptedModel answers every prompt with the same text and records prompts.
type scriptedModel struct {
	err      error
	response string
	prompts  []string
	mu       sync.Mutex
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tp, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, tp.Text)
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}
