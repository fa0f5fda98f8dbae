package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/Veraticus/spice-insights/internal/llm"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/service"
)

// DefaultMaxExamples is how many similar examples go into a prompt.
const DefaultMaxExamples = 3

// Messages returned in SQLResult.ErrorMessage.
const (
	msgEmptyModelResponse = "Invalid or empty response from model"
	msgInvalidFormat      = "Invalid response format from model"
	msgUnparseable        = "Failed to parse model response as JSON"
)

// SQLResult holds exactly one of Query or ErrorMessage.
type SQLResult struct {
	Query        string `json:"query,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// OK reports whether a query was produced.
func (r SQLResult) OK() bool {
	return r.Query != ""
}

// SQLGenerator turns questions into SQL with retrieved examples.
type SQLGenerator struct {
	model       llms.Model
	examples    service.ExampleStore
	logger      *slog.Logger
	maxExamples int
}

// NewSQLGenerator creates a generator. examples may be nil.
func NewSQLGenerator(m llms.Model, examples service.ExampleStore, maxExamples int) *SQLGenerator {
	if maxExamples <= 0 {
		maxExamples = DefaultMaxExamples
	}
	return &SQLGenerator{
		model:       m,
		examples:    examples,
		maxExamples: maxExamples,
		logger:      slog.Default(),
	}
}

// Generate never returns a fault; every failure becomes an ErrorMessage.
func (g *SQLGenerator) Generate(ctx context.Context, question string, project *model.ProjectConfig, userID string) SQLResult {
	examples := g.similar(ctx, question, project.Dialect)
	prompt := BuildSQLPrompt(question, project, userID, examples)

	resp, err := g.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithTemperature(0))
	if err != nil {
		return SQLResult{ErrorMessage: fmt.Sprintf("API request error: %v", err)}
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return SQLResult{ErrorMessage: msgEmptyModelResponse}
	}
	return ParseSQLResponse(resp.Choices[0].Content)
}

func (g *SQLGenerator) similar(ctx context.Context, question, dialect string) []model.SQLExample {
	if g.examples == nil {
		return nil
	}
	examples, err := g.examples.Similar(ctx, dialect, question, g.maxExamples)
	if err != nil {
		g.logger.WarnContext(ctx, "example retrieval failed, prompting without examples",
			"dialect", dialect, "error", err)
		return nil
	}
	return examples
}

// ParseSQLResponse interprets raw model text.
func ParseSQLResponse(text string) SQLResult {
	if strings.TrimSpace(text) == "" {
		return SQLResult{ErrorMessage: msgEmptyModelResponse}
	}

	var decoded map[string]any
	if err := llm.DecodeJSON(text, &decoded); err != nil {
		if sql, ok := llm.ExtractFencedBlock(text, "sql"); ok {
			return SQLResult{Query: sql}
		}
		return SQLResult{ErrorMessage: msgUnparseable}
	}

	if q, ok := decoded["query"].(string); ok && strings.TrimSpace(q) != "" {
		return SQLResult{Query: q}
	}
	if msg, ok := decoded["error_message"].(string); ok && msg != "" {
		return SQLResult{ErrorMessage: msg}
	}
	if sql, ok := llm.ExtractFencedBlock(text, "sql"); ok {
		return SQLResult{Query: sql}
	}
	return SQLResult{ErrorMessage: msgInvalidFormat}
}
