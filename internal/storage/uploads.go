package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
)

// DefaultHistoryLimit is the number of uploads returned when no limit is given.
const DefaultHistoryLimit = 100

// CreateUpload records a new upload and sets its ID, which becomes the file id.
func (s *SQLiteStorage) CreateUpload(ctx context.Context, upload *model.UploadHistory) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if upload == nil {
		return fmt.Errorf("%w: upload", ErrNilParameter)
	}
	if err := validateString(upload.UserID, "userID"); err != nil {
		return err
	}
	if err := validateUploadStatus(upload.Status); err != nil {
		return err
	}
	if upload.UploadedAt.IsZero() {
		upload.UploadedAt = time.Now().UTC().Truncate(time.Second)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_history (user_id, file_name, status, message, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
	`, upload.UserID, upload.FileName, upload.Status, upload.Message, upload.UploadedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to insert upload history: %w", common.ErrPersistence, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to read upload id: %w", common.ErrPersistence, err)
	}
	upload.ID = id
	return nil
}

// UpdateUploadStatus moves an upload to a new status.
func (s *SQLiteStorage) UpdateUploadStatus(ctx context.Context, id int64, status model.UploadStatus, message string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUploadStatus(status); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE upload_history SET status = ?, message = ? WHERE id = ?`, status, message, id)
	if err != nil {
		return fmt.Errorf("%w: failed to update upload %d: %w", common.ErrPersistence, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("upload %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// ListUploads returns the user's most recent uploads, newest first.
func (s *SQLiteStorage) ListUploads(ctx context.Context, userID string, limit int) ([]model.UploadHistory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, file_name, status, message, uploaded_at
		FROM upload_history
		WHERE user_id = ?
		ORDER BY uploaded_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query upload history: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var history []model.UploadHistory
	for rows.Next() {
		var h model.UploadHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.FileName, &h.Status, &h.Message, &h.UploadedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan upload history: %w", common.ErrPersistence, err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return history, nil
}
