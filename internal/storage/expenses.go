package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/service"
)

// InsertExpenses inserts expense rows in one transaction. Rows matching an existing
// (user, date, description, amount, currency) are ignored.
func (s *SQLiteStorage) InsertExpenses(ctx context.Context, expenses []model.Expense) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(expenses) == 0 {
		return 0, nil
	}
	for i := range expenses {
		if err := validateExpense(&expenses[i]); err != nil {
			return 0, fmt.Errorf("%w: expense at index %d: %w", common.ErrValidation, i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %w", common.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO expenses (
			user_id, file_id, date, expense, currency_code, description, category, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prepare statement: %w", common.ErrPersistence, err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC().Truncate(time.Second)
	var inserted int64
	for _, e := range expenses {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		res, execErr := stmt.ExecContext(ctx,
			e.UserID, e.FileID, e.Date, e.Amount, e.CurrencyCode, e.Description,
			nullString(e.Category), createdAt)
		if execErr != nil {
			return 0, fmt.Errorf("%w: failed to insert expense %q: %w", common.ErrPersistence, e.Description, execErr)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit expenses: %w", common.ErrPersistence, err)
	}
	return inserted, nil
}

// UncategorizedDescriptions returns distinct descriptions still lacking a category.
func (s *SQLiteStorage) UncategorizedDescriptions(ctx context.Context, userID string, fileID int64) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT description FROM expenses
		WHERE user_id = ? AND file_id = ? AND (category IS NULL OR category = '')
		GROUP BY description
		ORDER BY MIN(id)
	`, userID, fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query uncategorized expenses: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var descriptions []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("%w: failed to scan description: %w", common.ErrPersistence, err)
		}
		descriptions = append(descriptions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return descriptions, nil
}

// ApplyCategories writes categories for rows that are still uncategorized. Running it
// twice with the same input changes nothing the second time.
func (s *SQLiteStorage) ApplyCategories(ctx context.Context, userID string, fileID int64, categories map[string]string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	if len(categories) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %w", common.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE expenses SET category = ?
		WHERE user_id = ? AND file_id = ? AND description = ?
		AND (category IS NULL OR category = '')
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prepare update: %w", common.ErrPersistence, err)
	}
	defer func() { _ = stmt.Close() }()

	var updated int64
	for description, category := range categories {
		res, execErr := stmt.ExecContext(ctx, category, userID, fileID, description)
		if execErr != nil {
			return 0, fmt.Errorf("%w: failed to update %q: %w", common.ErrPersistence, description, execErr)
		}
		n, _ := res.RowsAffected()
		updated += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit categories: %w", common.ErrPersistence, err)
	}
	return updated, nil
}

// ListExpenses returns the user's expenses ordered by id.
func (s *SQLiteStorage) ListExpenses(ctx context.Context, filter service.ExpenseFilter) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.UserID, "userID"); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, user_id, file_id, date, expense, currency_code, description,
		COALESCE(category, ''), created_at FROM expenses WHERE user_id = ?`)
	args := []any{filter.UserID}

	if filter.Category != "" {
		sb.WriteString(" AND category = ?")
		args = append(args, filter.Category)
	}
	if filter.Start != nil {
		sb.WriteString(" AND date >= ?")
		args = append(args, *filter.Start)
	}
	if filter.End != nil {
		sb.WriteString(" AND date <= ?")
		args = append(args, *filter.End)
	}
	sb.WriteString(" ORDER BY id ASC")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query expenses: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var expenses []model.Expense
	for rows.Next() {
		var e model.Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.FileID, &e.Date, &e.Amount, &e.CurrencyCode,
			&e.Description, &e.Category, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan expense: %w", common.ErrPersistence, err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return expenses, nil
}

// UpdateExpenseCategory overrides the category of one expense owned by userID.
func (s *SQLiteStorage) UpdateExpenseCategory(ctx context.Context, userID string, id int64, category string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(category, "category"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET category = ? WHERE id = ? AND user_id = ?`, category, id, userID)
	if err != nil {
		return fmt.Errorf("%w: failed to update expense %d: %w", common.ErrPersistence, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
