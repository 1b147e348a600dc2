package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // register the pure-Go "sqlite" driver

	"github.com/persistorai/auditscope/internal/db"
	"github.com/persistorai/auditscope/internal/service"
)

// SQLiteStore writes reports to a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string, log *logrus.Logger) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := db.MigrateSQLite(ctx, sqlDB, log); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating sqlite %s: %w", path, err)
	}

	return &SQLiteStore{db: sqlDB, log: log}, nil
}

// SaveReport inserts the report and its entries in one transaction.
func (s *SQLiteStore) SaveReport(ctx context.Context, rep *service.Report) (int, error) {
	rows, err := logRows(rep)
	if err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort rollback on early return.

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_reports (id, scope_type, scope_id, from_date, to_date, pages, truncated, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.ScopeType, rep.ScopeID, rep.From, rep.To, rep.Pages, rep.Truncated,
		rep.GeneratedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting report: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(logColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO audit_logs ("+strings.Join(logColumns, ", ")+") VALUES ("+placeholders+")")
	if err != nil {
		return 0, fmt.Errorf("preparing entry insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i].values(rep.ID)...); err != nil {
			return 0, fmt.Errorf("inserting entry %d: %w", rows[i].seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing report: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"report_id": rep.ID,
		"entries":   len(rows),
	}).Info("report saved to sqlite")
	return len(rows), nil
}

// CountEntries returns the number of stored entries for reportID.
func (s *SQLiteStore) CountEntries(ctx context.Context, reportID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs WHERE report_id = ?", reportID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// HasReport reports whether reportID is stored.
func (s *SQLiteStore) HasReport(ctx context.Context, reportID string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM audit_reports WHERE id = ?)", reportID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("looking up report: %w", err)
	}
	return exists, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
