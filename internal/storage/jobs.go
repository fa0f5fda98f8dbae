package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
)

// CreateJob persists a new job record.
func (s *SQLiteStorage) CreateJob(ctx context.Context, job *model.ClassificationJob) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateJob(job); err != nil {
		return err
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_jobs (
			id, user_id, file_id, status, error, processed, classified, failed,
			created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.UserID, job.FileID, job.Status, job.Error, job.Processed, job.Classified, job.Failed,
		job.CreatedAt, nullTime(job.StartedAt), nullTime(job.FinishedAt))
	if err != nil {
		return fmt.Errorf("%w: failed to insert job %s: %w", common.ErrPersistence, job.ID, err)
	}
	return nil
}

// UpdateJob overwrites the mutable fields of a job.
func (s *SQLiteStorage) UpdateJob(ctx context.Context, job *model.ClassificationJob) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateJob(job); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE classification_jobs
		SET status = ?, error = ?, processed = ?, classified = ?, failed = ?,
			started_at = ?, finished_at = ?
		WHERE id = ?
	`, job.Status, job.Error, job.Processed, job.Classified, job.Failed,
		nullTime(job.StartedAt), nullTime(job.FinishedAt), job.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to update job %s: %w", common.ErrPersistence, job.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", job.ID, common.ErrNotFound)
	}
	return nil
}

const jobColumns = `id, user_id, file_id, status, error, processed, classified, failed,
	created_at, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.ClassificationJob, error) {
	var job model.ClassificationJob
	var started, finished sql.NullTime
	if err := row.Scan(&job.ID, &job.UserID, &job.FileID, &job.Status, &job.Error,
		&job.Processed, &job.Classified, &job.Failed, &job.CreatedAt, &started, &finished); err != nil {
		return nil, err
	}
	job.StartedAt = timePtr(started)
	job.FinishedAt = timePtr(finished)
	return &job, nil
}

// GetJob loads a job by id.
func (s *SQLiteStorage) GetJob(ctx context.Context, id string) (*model.ClassificationJob, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM classification_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load job %s: %w", common.ErrPersistence, id, err)
	}
	return job, nil
}

// ListJobs returns the user's most recent jobs, newest first.
func (s *SQLiteStorage) ListJobs(ctx context.Context, userID string, limit int) ([]model.ClassificationJob, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM classification_jobs
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query jobs: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []model.ClassificationJob
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: failed to scan job: %w", common.ErrPersistence, scanErr)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return jobs, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
