package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/service"
	"github.com/Veraticus/spice-insights/internal/storage"
	"github.com/Veraticus/spice-insights/internal/testutil"
)

const testUser = "ana@example.com"

// keywordClassifier decides by substring and records what it was asked.
type keywordClassifier struct {
	calls   map[string]int
	before  func(batch []string)
	failOn  string
	batches [][]string
	mu      sync.Mutex
}

func newKeywordClassifier() *keywordClassifier {
	return &keywordClassifier{calls: make(map[string]int)}
}

func (k *keywordClassifier) ClassifyBatch(_ context.Context, transactions []string) ([]model.Decision, error) {
	k.mu.Lock()
	k.batches = append(k.batches, append([]string(nil), transactions...))
	for _, t := range transactions {
		k.calls[t]++
	}
	before := k.before
	k.mu.Unlock()

	if before != nil {
		before(transactions)
	}

	out := make([]model.Decision, len(transactions))
	for i, t := range transactions {
		if k.failOn != "" && strings.Contains(t, k.failOn) {
			return nil, errors.New("oracle unavailable")
		}
		out[i] = model.Decision{Transaction: t, Category: categoryFor(t)}
	}
	return out, nil
}

func categoryFor(t string) string {
	switch {
	case strings.Contains(t, "NETFLIX"):
		return "Entertainment"
	case strings.Contains(t, "TESCO"):
		return "Groceries"
	case strings.Contains(t, "UBER"):
		return "Transport"
	}
	return ""
}

func categoriesByDescription(t *testing.T, store *storage.SQLiteStorage, fileID int64) map[string]string {
	t.Helper()
	rows, err := store.ListExpenses(context.Background(), service.ExpenseFilter{UserID: testUser})
	require.NoError(t, err)
	out := make(map[string]string)
	for _, r := range rows {
		if r.FileID == fileID {
			out[r.Description] = r.Category
		}
	}
	return out
}

func TestClassifyFileMemoizesDescriptions(t *testing.T) {
	store := testutil.NewStorage(t)
	testutil.SeedExpenses(t, store, testUser, 1, "NETFLIX.COM", "TESCO STORES", "NETFLIX.COM", "UBER TRIP", "TESCO STORES")

	classifier := newKeywordClassifier()
	engine := NewBatchEngine(store, classifier)

	summary, err := engine.ClassifyFile(context.Background(), testUser, 1, DefaultBatchOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Descriptions)
	assert.Equal(t, 3, summary.Classified)
	assert.Equal(t, int64(5), summary.RowsUpdated)
	assert.Zero(t, summary.Failed)
	for description, n := range classifier.calls {
		assert.Equal(t, 1, n, description)
	}
	assert.Equal(t, map[string]string{
		"NETFLIX.COM":  "Entertainment",
		"TESCO STORES": "Groceries",
		"UBER TRIP":    "Transport",
	}, categoriesByDescription(t, store, 1))

	// A second run finds nothing left to do.
	summary, err = engine.ClassifyFile(context.Background(), testUser, 1, DefaultBatchOptions())
	require.NoError(t, err)
	assert.Zero(t, summary.Descriptions)
}

func TestClassifyFileCommitsChunksInOrder(t *testing.T) {
	store := testutil.NewStorage(t)
	testutil.SeedExpenses(t, store, testUser, 2, "NETFLIX 1", "TESCO 2", "UBER 3", "NETFLIX 4", "TESCO 5")

	classifier := newKeywordClassifier()
	var remaining []int
	classifier.before = func([]string) {
		left, err := store.UncategorizedDescriptions(context.Background(), testUser, 2)
		require.NoError(t, err)
		remaining = append(remaining, len(left))
	}

	var progress [][2]int
	opts := BatchOptions{ChunkSize: 2, Progress: func(done, total int) {
		progress = append(progress, [2]int{done, total})
	}}

	_, err := NewBatchEngine(store, classifier).ClassifyFile(context.Background(), testUser, 2, opts)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"NETFLIX 1", "TESCO 2"}, {"UBER 3", "NETFLIX 4"}, {"TESCO 5"}}, classifier.batches)
	assert.Equal(t, []int{5, 3, 1}, remaining, "each chunk is committed before the next starts")
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)
}

func TestClassifyFileSkipsFailingChunk(t *testing.T) {
	store := testutil.NewStorage(t)
	testutil.SeedExpenses(t, store, testUser, 3, "NETFLIX A", "BAD ROW", "TESCO B", "UBER C")

	classifier := newKeywordClassifier()
	classifier.failOn = "BAD"

	summary, err := NewBatchEngine(store, classifier).ClassifyFile(context.Background(), testUser, 3, BatchOptions{ChunkSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailedChunks)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2, summary.Classified)

	got := categoriesByDescription(t, store, 3)
	assert.Empty(t, got["NETFLIX A"])
	assert.Empty(t, got["BAD ROW"])
	assert.Equal(t, "Groceries", got["TESCO B"])
	assert.Equal(t, "Transport", got["UBER C"])
}

func TestClassifyFileLeavesUndecidedRows(t *testing.T) {
	store := testutil.NewStorage(t)
	testutil.SeedExpenses(t, store, testUser, 4, "MYSTERY SHOP", "NETFLIX")

	summary, err := NewBatchEngine(store, newKeywordClassifier()).ClassifyFile(context.Background(), testUser, 4, DefaultBatchOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Undecided)
	assert.Equal(t, 1, summary.Classified)

	left, err := store.UncategorizedDescriptions(context.Background(), testUser, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"MYSTERY SHOP"}, left)
}

func TestClassifyFileCanceled(t *testing.T) {
	store := testutil.NewStorage(t)
	testutil.SeedExpenses(t, store, testUser, 5, "NETFLIX", "TESCO")

	ctx, cancel := context.WithCancel(context.Background())
	classifier := newKeywordClassifier()
	classifier.before = func([]string) { cancel() }

	_, err := NewBatchEngine(store, classifier).ClassifyFile(ctx, testUser, 5, BatchOptions{ChunkSize: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, classifier.batches, 1)
}

type failingExpenses struct {
	service.ExpenseStorage
}

func (failingExpenses) UncategorizedDescriptions(context.Context, string, int64) ([]string, error) {
	return nil, errors.New("database locked")
}

func TestClassifyFileCannotStart(t *testing.T) {
	_, err := NewBatchEngine(failingExpenses{}, newKeywordClassifier()).
		ClassifyFile(context.Background(), testUser, 1, DefaultBatchOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database locked")
}
