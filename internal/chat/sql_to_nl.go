package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/query"
)

// Messages returned in AnswerResult.ErrorMessage.
const (
	msgNoCandidates = "No valid response from AI."
	msgEmptyChoice  = "Empty AI response."
	msgNoText       = "No generated text."
)

// AnswerResult holds exactly one of QueryText or ErrorMessage.
type AnswerResult struct {
	QueryText    string `json:"query_text,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// OK reports whether an answer was produced.
func (r AnswerResult) OK() bool {
	return r.QueryText != ""
}

// Summarizer turns result sets into prose.
type Summarizer struct {
	model llms.Model
}

// NewSummarizer creates a summarizer.
func NewSummarizer(m llms.Model) *Summarizer {
	return &Summarizer{model: m}
}

// Summarize never returns a fault; every failure becomes an ErrorMessage.
func (s *Summarizer) Summarize(ctx context.Context, question string, project *model.ProjectConfig, rows []query.Row) AnswerResult {
	payload, err := json.Marshal(rows)
	if err != nil {
		return AnswerResult{ErrorMessage: fmt.Sprintf("failed to encode database response: %v", err)}
	}
	prompt := BuildAnswerPrompt(question, project, string(payload))

	resp, err := s.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return AnswerResult{ErrorMessage: fmt.Sprintf("API request error: %v", err)}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return AnswerResult{ErrorMessage: msgNoCandidates}
	}
	choice := resp.Choices[0]
	if choice == nil {
		return AnswerResult{ErrorMessage: msgEmptyChoice}
	}
	text := strings.TrimSpace(choice.Content)
	if text == "" {
		return AnswerResult{ErrorMessage: msgNoText}
	}
	return AnswerResult{QueryText: text}
}
