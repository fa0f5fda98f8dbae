// Package service defines the interfaces shared between application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-insights/internal/model"
)

// ExpenseStorage persists uploaded expense rows and their categories.
type ExpenseStorage interface {
	// InsertExpenses inserts rows, ignoring duplicates, and returns the number inserted.
	InsertExpenses(ctx context.Context, expenses []model.Expense) (int64, error)
	// UncategorizedDescriptions returns the distinct descriptions of rows in a file
	// whose category is NULL or empty, in first-seen order.
	UncategorizedDescriptions(ctx context.Context, userID string, fileID int64) ([]string, error)
	// ApplyCategories writes description → category for rows still uncategorized.
	// It commits all updates in one transaction and returns the rows affected.
	ApplyCategories(ctx context.Context, userID string, fileID int64, categories map[string]string) (int64, error)
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]model.Expense, error)
	// UpdateExpenseCategory sets the category of one of the user's rows.
	UpdateExpenseCategory(ctx context.Context, userID string, id int64, category string) error
}

// ExpenseFilter defines filtering options for expense listings.
type ExpenseFilter struct {
	Start    *time.Time
	End      *time.Time
	UserID   string
	Category string
	Limit    int
}

// UploadStorage tracks file uploads.
type UploadStorage interface {
	CreateUpload(ctx context.Context, upload *model.UploadHistory) error
	UpdateUploadStatus(ctx context.Context, id int64, status model.UploadStatus, message string) error
	ListUploads(ctx context.Context, userID string, limit int) ([]model.UploadHistory, error)
}

// JobStorage persists classification job records.
type JobStorage interface {
	CreateJob(ctx context.Context, job *model.ClassificationJob) error
	UpdateJob(ctx context.Context, job *model.ClassificationJob) error
	GetJob(ctx context.Context, id string) (*model.ClassificationJob, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]model.ClassificationJob, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	ExpenseStorage
	UploadStorage
	JobStorage

	Migrate(ctx context.Context) error
	Close() error
}

// ExampleStore is a nearest-neighbor index over SQL examples, one collection per dialect.
type ExampleStore interface {
	// Refresh replaces the dialect's collection with examples.
	Refresh(ctx context.Context, dialect string, examples []model.SQLExample) error
	// Similar returns at most n examples closest to question, most similar first.
	Similar(ctx context.Context, dialect, question string, n int) ([]model.SQLExample, error)
}

// BatchClassifier classifies transaction descriptions.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, transactions []string) ([]model.Decision, error)
}

// Locker provides mutual exclusion across workers, and across processes for distributed implementations.
type Locker interface {
	// TryLock acquires key for ttl. It returns common.ErrJobInProgress when the key is held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Unlocker, error)
}

// Unlocker releases a lock obtained from a Locker.
type Unlocker interface {
	Unlock(ctx context.Context) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
