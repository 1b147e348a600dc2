// Package store persists audit reports to SQL databases: a SQLite file for
// portable exports and a PostgreSQL table for shared history.
//
// Both sinks write one audit_reports row per report and one audit_logs row
// per entry, inside a single transaction.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/internal/dbpool"
	"github.com/persistorai/auditscope/internal/export"
	"github.com/persistorai/auditscope/internal/service"
)

const defaultQueryTimeout = 30 * time.Second

// Sink kinds accepted by Open.
const (
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

// ErrUnknownSink is returned by Open for an unsupported kind.
var ErrUnknownSink = errors.New("unknown sink")

// Sink stores reports.
type Sink interface {
	// SaveReport writes rep and returns the number of entries stored.
	SaveReport(ctx context.Context, rep *service.Report) (int, error)
	// CountEntries returns the number of stored entries for a report.
	CountEntries(ctx context.Context, reportID string) (int, error)
	// HasReport reports whether a report with this ID is stored.
	HasReport(ctx context.Context, reportID string) (bool, error)
	Close() error
}

// Open returns a migrated sink. For KindSQLite target is a file path, for
// KindPostgres a connection URL.
func Open(ctx context.Context, kind, target string, log *logrus.Logger) (Sink, error) {
	switch kind {
	case KindSQLite:
		return OpenSQLite(ctx, target, log)
	case KindPostgres:
		pool, err := dbpool.NewPool(ctx, target)
		if err != nil {
			return nil, err
		}
		s, err := NewPostgresStore(ctx, pool, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownSink)
	}
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// logRow is the column set of audit_logs, in insert order.
type logRow struct {
	seq       int
	groupID   string
	orgID     string
	orgName   *string
	projectID string
	userID    string
	userName  *string
	event     string
	created   string
	content   []byte
}

var logColumns = []string{
	"report_id", "seq", "group_id", "org_id", "org_name", "project_id",
	"user_id", "user_name", "event", "created", "content",
}

// logRows flattens rep for insertion. Missing IDs are stored as N/A and
// unresolved names as NULL.
func logRows(rep *service.Report) ([]logRow, error) {
	records := export.Records(rep)
	rows := make([]logRow, len(records))
	for i := range records {
		r := &records[i]
		row := logRow{
			seq:       r.Index,
			groupID:   export.OrNA(r.GroupID),
			orgID:     export.OrNA(r.OrgID),
			orgName:   nullable(r.OrgName),
			projectID: export.OrNA(r.ProjectID),
			userID:    export.OrNA(r.UserID),
			userName:  nullable(r.UserName),
			event:     export.OrNA(r.Event),
			created:   export.OrNA(r.Time),
		}
		if r.Content != nil {
			b, err := json.Marshal(r.Content)
			if err != nil {
				return nil, fmt.Errorf("marshaling content of entry %d: %w", r.Index, err)
			}
			row.content = b
		}
		rows[i] = row
	}
	return rows, nil
}

func (r *logRow) values(reportID string) []any {
	var content any
	if r.content != nil {
		content = string(r.content)
	}
	return []any{
		reportID, r.seq, r.groupID, r.orgID, r.orgName, r.projectID,
		r.userID, r.userName, r.event, r.created, content,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
