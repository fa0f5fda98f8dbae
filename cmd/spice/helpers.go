package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-insights/internal/chat"
	"github.com/Veraticus/spice-insights/internal/classifier"
	"github.com/Veraticus/spice-insights/internal/config"
	"github.com/Veraticus/spice-insights/internal/engine"
	"github.com/Veraticus/spice-insights/internal/examples"
	"github.com/Veraticus/spice-insights/internal/llm"
	"github.com/Veraticus/spice-insights/internal/lock"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/query"
	"github.com/Veraticus/spice-insights/internal/service"
	"github.com/Veraticus/spice-insights/internal/storage"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

func setDefaults() {
	viper.SetDefault("database.path", config.DefaultDatabasePath)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.rate_limit", 60)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.retry_delay", time.Second)

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.rate_limit", 300)
	viper.SetDefault("embedding.timeout", 30*time.Second)
	viper.SetDefault("embedding.max_retries", 3)
	viper.SetDefault("embedding.cache_ttl", 24*time.Hour)

	viper.SetDefault("classifier.path", config.DefaultConfigDir+"/classifier.yaml")
	viper.SetDefault("classifier.few_shot_weight", classifier.DefaultFewShotWeight)
	viper.SetDefault("classifier.neighbors", classifier.DefaultNeighbors)
	viper.SetDefault("classifier.batch_size", classifier.DefaultBatchSize)
	viper.SetDefault("classifier.concurrency", 4)

	viper.SetDefault("projects.path", config.DefaultConfigDir+"/projects")
	viper.SetDefault("chat.max_examples", chat.DefaultMaxExamples)
	viper.SetDefault("query.max_open_conns", query.DefaultMaxOpenConns)
	viper.SetDefault("query.conn_max_lifetime", query.DefaultConnMaxLifetime)

	viper.SetDefault("jobs.workers", 2)
	viper.SetDefault("jobs.queue_size", 64)
	viper.SetDefault("jobs.chunk_size", engine.DefaultChunkSize)
	viper.SetDefault("jobs.lock_ttl", 30*time.Minute)

	viper.SetDefault("redis.prefix", "spice:lock:")
	viper.SetDefault("upload.file_types", config.DefaultConfigDir+"/file_types.json")
}

// initStorage opens the database and runs migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ResolvePath(viper.GetString("database.path"), config.DefaultDatabasePath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// cleanup runs deferred shutdown steps in reverse order.
type cleanup []func()

func (c *cleanup) add(fn func()) { *c = append(*c, fn) }

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// components are the services built from configuration for one command.
type components struct {
	store    *storage.SQLiteStorage
	oracle   *llm.Oracle
	embedder *llm.Embedder
	cleanup  cleanup
}

func newComponents(ctx context.Context) (*components, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}
	c := &components{store: store}
	c.cleanup.add(func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	})
	return c, nil
}

func (c *components) Close() { c.cleanup.run() }

func (c *components) getOracle(ctx context.Context) (*llm.Oracle, error) {
	if c.oracle != nil {
		return c.oracle, nil
	}
	oracle, err := newOracle(ctx)
	if err != nil {
		return nil, err
	}
	c.oracle = oracle
	return oracle, nil
}

func (c *components) getEmbedder(ctx context.Context) (*llm.Embedder, error) {
	if c.embedder != nil {
		return c.embedder, nil
	}
	embedder, err := newEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	c.embedder = embedder
	c.cleanup.add(embedder.Close)
	return embedder, nil
}

func (c *components) exampleStore(ctx context.Context) (*examples.Store, error) {
	embedder, err := c.getEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	return examples.NewStore(c.store.DB(), embedder), nil
}

// chatService wires NL→SQL, the query adapter and SQL→NL for the configured project.
func (c *components) chatService(ctx context.Context) (*chat.Service, error) {
	oracle, err := c.getOracle(ctx)
	if err != nil {
		return nil, err
	}
	exampleStore, err := c.exampleStore(ctx)
	if err != nil {
		return nil, err
	}

	registry := query.NewRegistry(
		query.WithPoolLimits(viper.GetInt("query.max_open_conns"), viper.GetDuration("query.conn_max_lifetime")),
	)
	c.cleanup.add(func() {
		if err := registry.Close(); err != nil {
			slog.Warn("Failed to close query pools", "error", err)
		}
	})

	projects := chat.FileProjectSource{
		Path: projectsPath(),
		Name: viper.GetString("chat.project"),
	}
	return chat.NewService(
		projects,
		chat.NewSQLGenerator(oracle, exampleStore, viper.GetInt("chat.max_examples")),
		chat.NewSummarizer(oracle),
		query.NewAdapter(registry),
	), nil
}

func projectsPath() string {
	return config.ResolvePath(viper.GetString("projects.path"), config.DefaultConfigDir+"/projects")
}

// expenseClassifier builds the hybrid classifier from the classifier file.
func (c *components) expenseClassifier(ctx context.Context) (*classifier.ExpenseClassifier, error) {
	path := config.ResolvePath(viper.GetString("classifier.path"), config.DefaultConfigDir+"/classifier.yaml")
	file, err := config.LoadClassifierFile(path)
	if err != nil {
		return nil, err
	}

	oracle, err := c.getOracle(ctx)
	if err != nil {
		return nil, err
	}
	embedder, err := c.getEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	opts := classifier.Options{
		Rules:      file.RuleSet(),
		Categories: model.CategorySet(file.Categories),
		Examples:   file.Examples,
		Policy:     classifier.FusionPolicy{FewShotWeight: viper.GetFloat64("classifier.few_shot_weight")},
		Neighbors:  viper.GetInt("classifier.neighbors"),
		BatchSize:  viper.GetInt("classifier.batch_size"),
	}
	scorer := classifier.NewOracleScorer(oracle, viper.GetInt("classifier.concurrency"))
	return classifier.New(ctx, opts, scorer, embedder)
}

// locker returns the Redis lock provider when redis.addr is set, else an in-process one.
func (c *components) locker(ctx context.Context) (service.Locker, error) {
	addr := viper.GetString("redis.addr")
	if addr == "" {
		return lock.NewMemory(), nil
	}
	client, err := lock.Dial(ctx, addr, viper.GetString("redis.password"), viper.GetInt("redis.db"))
	if err != nil {
		return nil, err
	}
	c.cleanup.add(func() { _ = client.Close() })
	slog.Info("Using Redis job locks", "addr", addr)
	return lock.NewRedis(client, viper.GetString("redis.prefix")), nil
}

func batchOptions() engine.BatchOptions {
	opts := engine.DefaultBatchOptions()
	opts.ChunkSize = viper.GetInt("jobs.chunk_size")
	return opts
}

// jobRunner builds the classification worker pool. The caller starts it.
func (c *components) jobRunner(ctx context.Context) (*engine.JobRunner, error) {
	clf, err := c.expenseClassifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}
	locker, err := c.locker(ctx)
	if err != nil {
		return nil, err
	}

	runner := engine.NewJobRunner(c.store, engine.NewBatchEngine(c.store, clf), locker, engine.JobRunnerOptions{
		Batch:     batchOptions(),
		Workers:   viper.GetInt("jobs.workers"),
		QueueSize: viper.GetInt("jobs.queue_size"),
		LockTTL:   viper.GetDuration("jobs.lock_ttl"),
	})
	return runner, nil
}

func fileTypes() (config.FileTypes, error) {
	path := config.ResolvePath(viper.GetString("upload.file_types"), config.DefaultConfigDir+"/file_types.json")
	types, err := config.LoadFileTypes(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load file types from %s: %w", path, err)
	}
	return types, nil
}

// currentUser is the user id for local commands.
func currentUser() (string, error) {
	user := strings.TrimSpace(viper.GetString("user"))
	if user == "" {
		return "", errors.New("user is required: pass --user or set SPICE_USER")
	}
	return user, nil
}
