package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
)

// Pool tuning applied to every backend pool.
const (
	DefaultMaxOpenConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute
)

// Opener opens a database handle. sql.Open is the default.
type Opener func(driverName, dsn string) (*sql.DB, error)

// poolKey identifies one pool per dialect, server, user and database.
type poolKey struct {
	dialect  string
	database string
	host     string
	port     int
	user     string
}

// Registry owns the process-wide connection pools.
type Registry struct {
	pools    map[poolKey]*sql.DB
	backends map[string]Backend
	open     Opener
	logger   *slog.Logger
	lifetime time.Duration
	mu       sync.Mutex
	maxOpen  int
}

// Option customizes a Registry.
type Option func(*Registry)

// WithOpener replaces sql.Open.
func WithOpener(open Opener) Option {
	return func(r *Registry) { r.open = open }
}

// WithBackends replaces the supported dialects.
func WithBackends(backends map[string]Backend) Option {
	return func(r *Registry) { r.backends = backends }
}

// WithPoolLimits overrides pool tuning.
func WithPoolLimits(maxOpen int, lifetime time.Duration) Option {
	return func(r *Registry) {
		r.maxOpen = maxOpen
		r.lifetime = lifetime
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		pools:    make(map[poolKey]*sql.DB),
		backends: DefaultBackends(),
		open:     sql.Open,
		logger:   slog.Default(),
		maxOpen:  DefaultMaxOpenConns,
		lifetime: DefaultConnMaxLifetime,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend returns the backend for dialect or ErrNotImplemented.
func (r *Registry) Backend(dialect string) (Backend, error) {
	b, ok := r.backends[dialect]
	if !ok {
		return Backend{}, fmt.Errorf("%w: dialect %q", common.ErrNotImplemented, dialect)
	}
	return b, nil
}

// Pool returns the pool for (dialect, database) on conn's server, creating it on first use.
func (r *Registry) Pool(ctx context.Context, dialect string, conn model.ConnectionConfig) (*sql.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	backend, err := r.Backend(dialect)
	if err != nil {
		return nil, err
	}
	if err := backend.Validate(conn); err != nil {
		return nil, err
	}

	key := poolKey{
		dialect:  dialect,
		database: conn.Database,
		host:     strings.ToLower(conn.Host),
		port:     conn.Port,
		user:     conn.UserName,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.pools[key]; ok {
		return db, nil
	}

	db, err := r.open(backend.Driver, backend.DSN(conn))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s pool: %w", common.ErrTransport, dialect, err)
	}
	db.SetMaxOpenConns(r.maxOpen)
	db.SetConnMaxLifetime(r.lifetime)
	r.pools[key] = db

	r.logger.Info("opened connection pool", "dialect", dialect, "database", conn.Database, "host", conn.Host)
	return db, nil
}

// Len returns the number of open pools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// Close closes every pool.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, db := range r.pools {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s/%s: %w", key.dialect, key.database, err))
		}
		delete(r.pools, key)
	}
	return errors.Join(errs...)
}
