package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/internal/db"
	"github.com/persistorai/auditscope/internal/dbpool"
	"github.com/persistorai/auditscope/internal/service"
)

// PostgresStore writes reports to PostgreSQL using COPY for entries.
type PostgresStore struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

// NewPostgresStore applies migrations and returns a store over pool. The
// store owns the pool and closes it on Close.
func NewPostgresStore(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger) (*PostgresStore, error) {
	if err := db.MigratePostgres(ctx, pool, log); err != nil {
		return nil, fmt.Errorf("migrating postgres: %w", err)
	}
	return &PostgresStore{pool: pool, log: log}, nil
}

// SaveReport inserts the report row and copies its entries in one transaction.
func (s *PostgresStore) SaveReport(ctx context.Context, rep *service.Report) (int, error) {
	rows, err := logRows(rep)
	if err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_reports (id, scope_type, scope_id, from_date, to_date, pages, truncated, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rep.ID, rep.ScopeType, rep.ScopeID, rep.From, rep.To, rep.Pages, rep.Truncated, rep.GeneratedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting report: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"audit_logs"}, logColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return rows[i].values(rep.ID), nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copying entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing report: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"report_id": rep.ID,
		"entries":   n,
	}).Info("report saved to postgres")
	return int(n), nil
}

// CountEntries returns the number of stored entries for reportID.
func (s *PostgresStore) CountEntries(ctx context.Context, reportID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs WHERE report_id = $1", reportID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// HasReport reports whether reportID is stored.
func (s *PostgresStore) HasReport(ctx context.Context, reportID string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM audit_reports WHERE id = $1)", reportID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("looking up report: %w", err)
	}
	return exists, nil
}

// HealthCheck verifies the database is reachable.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.HealthCheck(ctx)
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
