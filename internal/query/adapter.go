package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Adapter dispatches statements to the registry's pools.
type Adapter struct {
	registry *Registry
}

// NewAdapter creates an adapter over registry.
func NewAdapter(registry *Registry) *Adapter {
	return &Adapter{registry: registry}
}

// Execute runs statement against the backend for dialect.
func (a *Adapter) Execute(ctx context.Context, dialect string, conn model.ConnectionConfig, statement string) ([]Row, error) {
	backend, err := a.registry.Backend(dialect)
	if err != nil {
		return nil, err
	}
	if backend.ReadOnly && !IsSelect(statement) {
		return nil, fmt.Errorf("%w: %s only accepts SELECT statements", common.ErrValidation, dialect)
	}

	db, err := a.registry.Pool(ctx, dialect, conn)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read columns: %w", common.ErrPersistence, err)
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %w", common.ErrPersistence, err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate rows: %w", common.ErrPersistence, err)
	}
	return result, nil
}
