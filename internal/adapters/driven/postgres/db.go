package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// DB is the shared pool behind the segment, run and lock stores.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// Config holds the pool settings and how hard Connect tries before giving up.
type Config struct {
	// URL is a lib/pq connection string, e.g. postgres://athena:pw@db:5432/athena?sslmode=disable
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// ConnectAttempts bounds the pings made by Connect. The database often
	// starts alongside the API, so the first pings may be refused.
	ConnectAttempts int
	RetryDelay      time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns pool settings sized for a worker that renders a few
// videos at a time plus the API.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
		ConnectAttempts: 5,
		RetryDelay:      2 * time.Second,
	}
}

// Connect opens the pool and pings until the server answers or the attempts
// run out. Call InitSchema afterwards to create the tables.
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "postgres")

	pool, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := pingWithRetry(ctx, pool, cfg, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{DB: pool, logger: logger}, nil
}

func pingWithRetry(ctx context.Context, pool *sql.DB, cfg Config, logger *slog.Logger) error {
	attempts := max(cfg.ConnectAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = pool.PingContext(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn("database not reachable yet", "attempt", attempt, "of", attempts, "error", err)
		select {
		case <-time.After(cfg.RetryDelay):
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		}
	}
	return fmt.Errorf("ping database after %d attempts: %w", attempts, err)
}

// InitSchema applies the embedded schema. Every statement in it is
// idempotent, so it runs on each start.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	db.log().Debug("schema applied")
	return nil
}

// Ping satisfies the readiness probe of the HTTP server.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// WithTx runs fn inside a transaction and commits when it returns nil.
// A failing fn rolls the transaction back.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (db *DB) log() *slog.Logger {
	if db.logger == nil {
		return slog.Default()
	}
	return db.logger
}

// nullTime maps an optional timestamp such as a run's completion onto a
// nullable column.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
