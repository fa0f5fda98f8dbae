package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/query"
)

// stubModel returns a fixed response and records prompts.
type stubModel struct {
	resp    *llms.ContentResponse
	err     error
	prompts []string
	mu      sync.Mutex
}

func textModel(text string) *stubModel {
	return &stubModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}}
}

func (m *stubModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, tc.Text)
			}
		}
	}
	return m.resp, m.err
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *stubModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

type stubExamples struct {
	err      error
	examples []model.SQLExample
	dialect  string
	n        int
}

func (s *stubExamples) Refresh(context.Context, string, []model.SQLExample) error {
	return errors.New("not supported")
}

func (s *stubExamples) Similar(_ context.Context, dialect, _ string, n int) ([]model.SQLExample, error) {
	s.dialect = dialect
	s.n = n
	if s.err != nil {
		return nil, s.err
	}
	return s.examples, nil
}

type stubExecutor struct {
	err        error
	rows       []query.Row
	statements []string
}

func (e *stubExecutor) Execute(_ context.Context, _ string, _ model.ConnectionConfig, statement string) ([]query.Row, error) {
	e.statements = append(e.statements, statement)
	return e.rows, e.err
}

type stubProjects struct {
	project *model.ProjectConfig
	err     error
}

func (s stubProjects) Project(context.Context) (*model.ProjectConfig, error) {
	return s.project, s.err
}

func expenseProject() *model.ProjectConfig {
	return &model.ProjectConfig{
		ProjectName: "expense_insights",
		Dialect:     model.DialectMySQL,
		Tables: []model.TableSchema{
			{Name: "expenses", Columns: []model.Column{
				{Name: "date", Description: "transaction date"},
				{Name: "expense", Description: "amount spent"},
				{Name: "category"},
			}},
			{Name: "upload_history", Columns: []model.Column{{Name: "file_name"}, {Name: "status"}}},
		},
		Rules:              []string{"Only generate SELECT statements"},
		SQLToNLRules:       []string{"Never mention table names"},
		UserFilterRequired: true,
	}
}
