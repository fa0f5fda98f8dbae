// Package engine runs batch classification of uploaded expenses and tracks
// each run as a job.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-insights/internal/observability"
	"github.com/Veraticus/spice-insights/internal/service"
)

// DefaultChunkSize is the number of descriptions classified and written per chunk.
const DefaultChunkSize = 10

// ProgressFunc reports descriptions handled so far out of total.
type ProgressFunc func(done, total int)

// BatchOptions configures one batch run.
type BatchOptions struct {
	Progress  ProgressFunc
	ChunkSize int
}

// DefaultBatchOptions returns sensible defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{ChunkSize: DefaultChunkSize}
}

// BatchSummary contains statistics about a batch run.
type BatchSummary struct {
	Descriptions   int
	Classified     int
	Undecided      int
	Failed         int
	FailedChunks   int
	RowsUpdated    int64
	ProcessingTime time.Duration
}

// BatchEngine classifies the uncategorized rows of one (user, file).
type BatchEngine struct {
	storage    service.ExpenseStorage
	classifier service.BatchClassifier
	logger     *slog.Logger
}

// NewBatchEngine creates a batch engine.
func NewBatchEngine(storage service.ExpenseStorage, classifier service.BatchClassifier) *BatchEngine {
	return &BatchEngine{
		storage:    storage,
		classifier: classifier,
		logger:     slog.Default(),
	}
}

// ClassifyFile classifies every uncategorized description of the file.
// Chunks are written back before the next chunk starts, and a failing chunk
// is logged and skipped. An error is returned only when the run could not
// start or the context ended.
func (e *BatchEngine) ClassifyFile(ctx context.Context, userID string, fileID int64, opts BatchOptions) (*BatchSummary, error) {
	startTime := time.Now()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	descriptions, err := e.storage.UncategorizedDescriptions(ctx, userID, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get uncategorized descriptions: %w", err)
	}

	summary := &BatchSummary{Descriptions: len(descriptions)}
	if len(descriptions) == 0 {
		e.logger.Info("No uncategorized expenses", "user_id", userID, "file_id", fileID)
		return summary, nil
	}

	e.logger.Info("Starting batch classification",
		"user_id", userID,
		"file_id", fileID,
		"descriptions", len(descriptions),
		"chunk_size", opts.ChunkSize)

	// Resolved descriptions are never sent to the classifier twice in a run.
	memo := make(map[string]string, len(descriptions))
	done := 0

	for start := 0; start < len(descriptions); start += opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			summary.ProcessingTime = time.Since(startTime)
			return summary, err
		}

		end := min(start+opts.ChunkSize, len(descriptions))
		chunk := descriptions[start:end]

		if err := e.classifyChunk(ctx, userID, fileID, chunk, memo, summary); err != nil {
			summary.FailedChunks++
			summary.Failed += len(chunk)
			e.logger.Warn("Failed to classify chunk, continuing",
				"user_id", userID,
				"file_id", fileID,
				"chunk_start", start,
				"chunk_size", len(chunk),
				"error", err)
		}

		done += len(chunk)
		if opts.Progress != nil {
			opts.Progress(done, len(descriptions))
		}
	}

	summary.ProcessingTime = time.Since(startTime)
	observability.AddClassified(summary.RowsUpdated)

	e.logger.Info("Batch classification complete",
		"user_id", userID,
		"file_id", fileID,
		"classified", summary.Classified,
		"undecided", summary.Undecided,
		"failed", summary.Failed,
		"rows_updated", summary.RowsUpdated,
		"duration", summary.ProcessingTime)
	return summary, nil
}

func (e *BatchEngine) classifyChunk(
	ctx context.Context,
	userID string,
	fileID int64,
	chunk []string,
	memo map[string]string,
	summary *BatchSummary,
) error {
	var pending []string
	queued := make(map[string]bool, len(chunk))
	for _, d := range chunk {
		if _, ok := memo[d]; ok || queued[d] {
			continue
		}
		queued[d] = true
		pending = append(pending, d)
	}

	if len(pending) > 0 {
		decisions, err := e.classifier.ClassifyBatch(ctx, pending)
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}
		if len(decisions) != len(pending) {
			return fmt.Errorf("classifier returned %d decisions for %d descriptions", len(decisions), len(pending))
		}
		for i, d := range decisions {
			memo[pending[i]] = d.Category
		}
	}

	updates := make(map[string]string, len(chunk))
	for _, d := range chunk {
		category := memo[d]
		if category == "" {
			summary.Undecided++
			continue
		}
		updates[d] = category
	}
	if len(updates) == 0 {
		return nil
	}

	rows, err := e.storage.ApplyCategories(ctx, userID, fileID, updates)
	if err != nil {
		return fmt.Errorf("failed to write categories: %w", err)
	}
	summary.Classified += len(updates)
	summary.RowsUpdated += rows
	return nil
}
