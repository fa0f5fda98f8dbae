package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/Veraticus/spice-insights/internal/common"
)

func fastConfig() Config {
	return Config{MaxRetries: 3, RetryDelay: time.Millisecond, Timeout: time.Second}
}

func TestOracleRetriesTransientFailures(t *testing.T) {
	model := &fakeModel{
		errs:      []error{errors.New("connection reset"), nil},
		responses: []string{"", "ok"},
	}
	oracle := WrapModel(model, fastConfig())

	text, err := llms.GenerateFromSinglePrompt(context.Background(), oracle, "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, model.calls)
}

func TestOracleExhaustsRetries(t *testing.T) {
	boom := errors.New("503 service unavailable")
	model := &fakeModel{errs: []error{boom, boom, boom, boom}}
	oracle := WrapModel(model, fastConfig())

	_, err := oracle.GenerateContent(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRetriesExhausted)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, 3, model.calls)
}

func TestOracleDoesNotRetryAuthFailures(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("401 invalid api key")}}
	oracle := WrapModel(model, fastConfig())

	_, err := oracle.GenerateContent(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.NotErrorIs(t, err, common.ErrRetriesExhausted)
	assert.Equal(t, 1, model.calls)
}

func TestNewModelRejectsUnknownProvider(t *testing.T) {
	_, err := NewModel(context.Background(), Config{Provider: "nope"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = NewEmbeddingClient(context.Background(), EmbeddingConfig{Provider: "nope"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestEmbedderCachesVectors(t *testing.T) {
	base := &fakeEmbedder{}
	e := WrapEmbedder(base, EmbeddingConfig{MaxRetries: 1})
	defer e.Close()
	ctx := context.Background()

	first, err := e.EmbedDocuments(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := e.EmbedDocuments(ctx, []string{"bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, first[1], second[0])
	require.Len(t, base.docBatches, 2)
	assert.Equal(t, []string{"ccc"}, base.docBatches[1], "only uncached texts reach the provider")

	_, err = e.EmbedQuery(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, base.queries, "documents and queries share the cache")
	assert.Equal(t, 3, e.cache.size())
}

func TestEmbedderSurfacesTransportErrors(t *testing.T) {
	base := &fakeEmbedder{err: errors.New("dial tcp: refused")}
	e := WrapEmbedder(base, EmbeddingConfig{MaxRetries: 1})
	defer e.Close()

	_, err := e.EmbedQuery(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrTransport)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"query": "SELECT 1"}`, `{"query": "SELECT 1"}`},
		{"json fence", "```json\n{\"query\": \"SELECT 1\"}\n```", `{"query": "SELECT 1"}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"single line fence", "```json{\"a\": 1}```", `{"a": 1}`},
		{"whitespace", "  \n```json\n[1,2]\n```  ", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.input))
		})
	}
}

func TestExtractFencedBlock(t *testing.T) {
	text := "Here you go:\n```sql\nSELECT * FROM expenses\n```\nthanks"
	block, ok := ExtractFencedBlock(text, "sql")
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM expenses", block)

	_, ok = ExtractFencedBlock("no fences here", "sql")
	assert.False(t, ok)
	_, ok = ExtractFencedBlock("```sql\n", "sql")
	assert.False(t, ok)
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Query string `json:"query"`
	}

	require.NoError(t, DecodeJSON("```json\n{\"query\": \"SELECT 1\"}\n```", &out))
	assert.Equal(t, "SELECT 1", out.Query)

	out.Query = ""
	require.NoError(t, DecodeJSON(`{"query": "SELECT 2",}`, &out), "trailing comma is repaired")
	assert.Equal(t, "SELECT 2", out.Query)

	assert.ErrorIs(t, DecodeJSON("   ", &out), common.ErrFormat)
}
