// Package testutil provides shared fixtures for tests that need a real database.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/storage"
)

// SeedDate is the date of the first seeded expense; later rows follow one day apart.
var SeedDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// NewStorage opens a migrated SQLite database in t's temp dir and closes it
// on cleanup.
func NewStorage(t testing.TB) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return store
}

// SeedExpenses inserts one uncategorized GBP 10.00 expense per description
// for (userID, fileID) and returns the number inserted.
func SeedExpenses(t testing.TB, store *storage.SQLiteStorage, userID string, fileID int64, descriptions ...string) int64 {
	t.Helper()

	rows := make([]model.Expense, len(descriptions))
	for i, d := range descriptions {
		rows[i] = model.Expense{
			UserID:       userID,
			FileID:       fileID,
			Date:         SeedDate.AddDate(0, 0, i),
			Amount:       10,
			CurrencyCode: "GBP",
			Description:  d,
		}
	}
	n, err := store.InsertExpenses(context.Background(), rows)
	if err != nil {
		t.Fatalf("failed to seed expenses: %v", err)
	}
	return n
}
