// Package dbpool manages the PostgreSQL connection pool behind the
// report store.
package dbpool

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Options tunes the pool. Report saves are short bursts of COPY traffic,
// so a handful of connections is enough.
type Options struct {
	MaxConns         int32
	StatementTimeout time.Duration
	AppName          string
}

// DefaultOptions returns the pool settings used by the CLI and server.
func DefaultOptions() Options {
	return Options{MaxConns: 4, StatementTimeout: 30 * time.Second, AppName: "auditscope"}
}

// Pool wraps a pgxpool.Pool. Callers go through the store's
// timeout-bounded methods rather than the raw pool.
type Pool struct {
	pool *pgxpool.Pool
	dsn  string
}

// NewPool connects with DefaultOptions.
func NewPool(ctx context.Context, databaseURL string) (*Pool, error) {
	return NewPoolWithOptions(ctx, databaseURL, DefaultOptions())
}

// NewPoolWithOptions connects and pings the database.
func NewPoolWithOptions(ctx context.Context, databaseURL string, opts Options) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	if opts.StatementTimeout > 0 {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	}
	if opts.AppName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.AppName
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = 0
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("pinging database %s: %w", Redact(databaseURL), err)
	}

	return &Pool{pool: pool, dsn: databaseURL}, nil
}

// QueryRow executes a query that returns at most one row.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction.
func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	return p.pool.Begin(ctx)
}

// HealthCheck pings the database.
func (p *Pool) HealthCheck(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

// ConnString returns the URL the pool was created from, for opening a
// database/sql handle on the same database (migrations).
func (p *Pool) ConnString() string {
	return p.dsn
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.pool.Close()
}

// Redact strips credentials from a connection URL for logs and output.
func Redact(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable URL]"
	}
	u.User = nil
	return u.String()
}
