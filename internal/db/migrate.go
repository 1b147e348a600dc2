// Package db runs goose migrations for the SQL export sinks.
//
// Migration files live in internal/db/migrations/{postgres,sqlite} and are
// embedded via //go:embed. Each sink applies pending migrations when opened.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/internal/db/migrations"
	"github.com/persistorai/auditscope/internal/dbpool"
)

// RunMigrations applies all pending migrations from fsys to sqlDB.
// The fsys should contain goose-annotated SQL files (e.g. "001_audit_logs.sql").
func RunMigrations(ctx context.Context, dialect goose.Dialect, sqlDB *sql.DB, log *logrus.Logger, fsys fs.FS) error {
	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}

		log.WithFields(logrus.Fields{
			"dialect":  dialect,
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration,
		}).Info("migration applied")
	}

	if len(results) == 0 {
		log.WithField("dialect", dialect).Debug("all migrations already applied")
	}

	return nil
}

// MigratePostgres applies the PostgreSQL migrations using the pool's
// connection string.
func MigratePostgres(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger) error {
	// goose requires a *sql.DB; open one through the pgx stdlib driver.
	sqlDB, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return fmt.Errorf("opening sql.DB for migrations: %w", err)
	}
	defer sqlDB.Close()

	return RunMigrations(ctx, goose.DialectPostgres, sqlDB, log, migrations.Postgres())
}

// MigrateSQLite applies the SQLite migrations to an open database.
func MigrateSQLite(ctx context.Context, sqlDB *sql.DB, log *logrus.Logger) error {
	return RunMigrations(ctx, goose.DialectSQLite3, sqlDB, log, migrations.SQLite())
}
