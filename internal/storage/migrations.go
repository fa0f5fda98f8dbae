package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Expenses and upload history",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS upload_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					file_name TEXT NOT NULL,
					status TEXT NOT NULL,
					message TEXT NOT NULL DEFAULT '',
					uploaded_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_upload_history_user ON upload_history(user_id, uploaded_at)`,

				`CREATE TABLE IF NOT EXISTS expenses (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					file_id INTEGER NOT NULL,
					date DATETIME NOT NULL,
					expense REAL NOT NULL,
					currency_code TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL,
					category TEXT,
					created_at DATETIME NOT NULL,
					UNIQUE(user_id, date, description, expense, currency_code)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_expenses_user_file ON expenses(user_id, file_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Classification jobs",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS classification_jobs (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					file_id INTEGER NOT NULL,
					status TEXT NOT NULL,
					error TEXT NOT NULL DEFAULT '',
					processed INTEGER NOT NULL DEFAULT 0,
					classified INTEGER NOT NULL DEFAULT 0,
					failed INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					started_at DATETIME,
					finished_at DATETIME
				)`,
				`CREATE INDEX IF NOT EXISTS idx_classification_jobs_user ON classification_jobs(user_id, created_at)`,
			})
		},
	},
	{
		Version:     3,
		Description: "SQL example index",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS sql_examples (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					collection TEXT NOT NULL,
					prompt TEXT NOT NULL,
					sql_text TEXT NOT NULL,
					embedding BLOB NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_sql_examples_collection ON sql_examples(collection)`,
			})
		},
	},
}

// Migrate applies pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
