// Package examples implements the persistent nearest-neighbor index of
// (question, SQL) examples used to prompt the SQL generator.
package examples

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/service"
	"github.com/Veraticus/spice-insights/internal/similarity"
)

// CollectionName is the name of the collection holding a dialect's examples.
func CollectionName(dialect string) string {
	return "sql_examples_" + dialect
}

// Store keeps one collection per dialect in the sql_examples table.
type Store struct {
	db       *sql.DB
	embedder embeddings.Embedder
	locks    map[string]*sync.Mutex
	mu       sync.Mutex
}

var _ service.ExampleStore = (*Store)(nil)

// NewStore creates a store over a migrated database handle.
func NewStore(db *sql.DB, embedder embeddings.Embedder) *Store {
	return &Store{
		db:       db,
		embedder: embedder,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Store) lockFor(dialect string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[dialect]
	if !ok {
		l = &sync.Mutex{}
		s.locks[dialect] = l
	}
	return l
}

// Refresh replaces the dialect's collection with examples. Embeddings are computed
// before the swap; the delete and inserts commit in one transaction, so readers see
// either the old collection or the new one. Refreshes of one dialect are serialized.
func (s *Store) Refresh(ctx context.Context, dialect string, examples []model.SQLExample) error {
	if dialect == "" {
		return fmt.Errorf("%w: dialect is required", common.ErrValidation)
	}

	l := s.lockFor(dialect)
	l.Lock()
	defer l.Unlock()

	var vectors [][]float32
	if len(examples) > 0 {
		docs := make([]string, len(examples))
		for i, ex := range examples {
			docs[i] = ex.Document()
		}
		var err error
		vectors, err = s.embedder.EmbedDocuments(ctx, docs)
		if err != nil {
			return fmt.Errorf("failed to embed %s examples: %w", dialect, err)
		}
		if len(vectors) != len(examples) {
			return fmt.Errorf("%w: expected %d embeddings, got %d", common.ErrFormat, len(examples), len(vectors))
		}
	}

	collection := CollectionName(dialect)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", common.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sql_examples WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("%w: failed to clear %s: %w", common.ErrPersistence, collection, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sql_examples (collection, prompt, sql_text, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: failed to prepare insert: %w", common.ErrPersistence, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, ex := range examples {
		if _, err := stmt.ExecContext(ctx, collection, ex.Prompt, ex.SQL, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("%w: failed to insert example %d: %w", common.ErrPersistence, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit %s: %w", common.ErrPersistence, collection, err)
	}

	slog.Info("Refreshed example collection", "collection", collection, "examples", len(examples))
	return nil
}

type storedExample struct {
	example model.SQLExample
	vector  []float32
}

func (s *Store) load(ctx context.Context, dialect string) ([]storedExample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prompt, sql_text, embedding FROM sql_examples WHERE collection = ? ORDER BY id`,
		CollectionName(dialect))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query examples: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var out []storedExample
	for rows.Next() {
		var se storedExample
		var blob []byte
		if err := rows.Scan(&se.example.Prompt, &se.example.SQL, &blob); err != nil {
			return nil, fmt.Errorf("%w: failed to scan example: %w", common.ErrPersistence, err)
		}
		se.example.Dialect = dialect
		se.vector, err = decodeVector(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return out, nil
}

// Similar returns at most n examples of dialect closest to question, most similar first.
// Equal similarities keep insertion order.
func (s *Store) Similar(ctx context.Context, dialect, question string, n int) ([]model.SQLExample, error) {
	if n <= 0 {
		return nil, nil
	}

	stored, err := s.load(ctx, dialect)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}

	query, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	vectors := make([][]float32, len(stored))
	for i, se := range stored {
		vectors[i] = se.vector
	}

	top := similarity.TopK(query, vectors, n)
	out := make([]model.SQLExample, len(top))
	for i, sc := range top {
		out[i] = stored[sc.Index].example
	}
	return out, nil
}

// Count returns the number of examples stored for dialect.
func (s *Store) Count(ctx context.Context, dialect string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sql_examples WHERE collection = ?`, CollectionName(dialect)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count examples: %w", common.ErrPersistence, err)
	}
	return n, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: embedding blob has %d bytes", common.ErrPersistence, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
