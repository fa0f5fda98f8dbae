// Package chat answers natural-language questions about tenant data by
// generating SQL, executing it and summarizing the result.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/config"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/observability"
	"github.com/Veraticus/spice-insights/internal/query"
)

// Stage names used for timings, metrics and failures.
const (
	StageConvertToSQL = "convert_to_sql"
	StageGuard        = "validate_sql"
	StageExecuteQuery = "execute_query"
	StageConvertToNL  = "convert_to_nl"
)

// ErrInvalidInput is returned for a missing or blank question.
var ErrInvalidInput = fmt.Errorf("%w: invalid input", common.ErrValidation)

// ProjectSource yields the tenant configuration for one request.
type ProjectSource interface {
	Project(ctx context.Context) (*model.ProjectConfig, error)
}

// FileProjectSource reads the named project from disk on every call.
type FileProjectSource struct {
	Path string
	Name string
}

// Project implements ProjectSource.
func (s FileProjectSource) Project(ctx context.Context) (*model.ProjectConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return config.FindProject(s.Path, s.Name)
}

// Executor runs SQL for a dialect.
type Executor interface {
	Execute(ctx context.Context, dialect string, conn model.ConnectionConfig, statement string) ([]query.Row, error)
}

// Answer is a successful chat response.
type Answer struct {
	Timings   map[string]time.Duration `json:"-"`
	QueryText string                   `json:"query_text"`
	SQL       string                   `json:"-"`
	Rows      int                      `json:"-"`
}

// Service runs the chat pipeline.
type Service struct {
	projects   ProjectSource
	generator  *SQLGenerator
	summarizer *Summarizer
	executor   Executor
	logger     *slog.Logger
}

// NewService wires the pipeline.
func NewService(projects ProjectSource, generator *SQLGenerator, summarizer *Summarizer, executor Executor) *Service {
	return &Service{
		projects:   projects,
		generator:  generator,
		summarizer: summarizer,
		executor:   executor,
		logger:     slog.Default(),
	}
}

// Ask answers question on behalf of userID. Errors that should reach the
// caller verbatim are common.UserError values.
func (s *Service) Ask(ctx context.Context, question, userID string) (answer *Answer, err error) {
	ctx, span := observability.StartSpan(ctx, "chat.ask", attribute.String("user.id", userID))
	defer func() { observability.EndSpan(span, err) }()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, common.NewUserError("Invalid input", ErrInvalidInput)
	}

	project, err := s.projects.Project(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewUserError("Project not found", err)
		}
		return nil, fmt.Errorf("failed to load project configuration: %w", err)
	}
	span.SetAttributes(
		attribute.String("project.name", project.ProjectName),
		attribute.String("project.dialect", project.Dialect),
	)

	answer = &Answer{Timings: make(map[string]time.Duration, 3)}

	start := time.Now()
	generated := s.generator.Generate(ctx, question, project, userID)
	s.record(answer, StageConvertToSQL, start)
	if !generated.OK() {
		observability.IncrementChatFailure(StageConvertToSQL)
		return nil, common.NewUserError(generated.ErrorMessage,
			fmt.Errorf("%w: %s", common.ErrFormat, generated.ErrorMessage))
	}
	answer.SQL = generated.Query

	if err := NewGuard(project).Check(generated.Query); err != nil {
		observability.IncrementChatFailure(StageGuard)
		s.logger.WarnContext(ctx, "rejected generated SQL", "query", generated.Query, "error", err)
		return nil, common.NewUserError("The generated query was rejected", err)
	}

	start = time.Now()
	rows, err := s.executor.Execute(ctx, project.Dialect, project.Connection, generated.Query)
	s.record(answer, StageExecuteQuery, start)
	if err != nil {
		observability.IncrementChatFailure(StageExecuteQuery)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	answer.Rows = len(rows)

	start = time.Now()
	summary := s.summarizer.Summarize(ctx, question, project, rows)
	s.record(answer, StageConvertToNL, start)
	if !summary.OK() {
		observability.IncrementChatFailure(StageConvertToNL)
		return nil, common.NewUserError(summary.ErrorMessage,
			fmt.Errorf("%w: %s", common.ErrFormat, summary.ErrorMessage))
	}
	answer.QueryText = summary.QueryText

	s.logger.InfoContext(ctx, "answered question",
		"project", project.ProjectName,
		"rows", answer.Rows,
		StageConvertToSQL, answer.Timings[StageConvertToSQL].String(),
		StageExecuteQuery, answer.Timings[StageExecuteQuery].String(),
		StageConvertToNL, answer.Timings[StageConvertToNL].String(),
	)
	return answer, nil
}

func (s *Service) record(answer *Answer, stage string, start time.Time) {
	d := time.Since(start)
	answer.Timings[stage] = d
	observability.ObserveChatStage(stage, d)
}
