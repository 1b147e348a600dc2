package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/export"
	"github.com/persistorai/auditscope/internal/service"
)

// CopyResult summarizes a Copy run.
type CopyResult struct {
	ReportsRead    int
	ReportsCopied  int
	ReportsSkipped int
	EntriesRead    int
	EntriesCopied  int
	DryRun         bool
}

// LoadReports reads every stored report in generation order. Entity
// directories are rebuilt from the stored names; N/A IDs become empty.
func (s *SQLiteStore) LoadReports(ctx context.Context) ([]*service.Report, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope_type, scope_id, from_date, to_date, pages, truncated, generated_at
		FROM audit_reports ORDER BY generated_at, id`)
	if err != nil {
		return nil, fmt.Errorf("reading reports: %w", err)
	}
	defer rows.Close()

	var reports []*service.Report
	for rows.Next() {
		var (
			rep       service.Report
			generated string
		)
		if err := rows.Scan(&rep.ID, &rep.ScopeType, &rep.ScopeID, &rep.From, &rep.To,
			&rep.Pages, &rep.Truncated, &generated); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		if rep.GeneratedAt, err = time.Parse(time.RFC3339, generated); err != nil {
			return nil, fmt.Errorf("report %s: generated_at %q: %w", rep.ID, generated, err)
		}
		rep.Entries = []client.AuditLogEntry{}
		rep.Users = map[string]client.EntitySummary{}
		rep.Orgs = map[string]client.EntitySummary{}
		reports = append(reports, &rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading reports: %w", err)
	}

	for _, rep := range reports {
		if err := s.loadEntries(ctx, rep); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func (s *SQLiteStore) loadEntries(ctx context.Context, rep *service.Report) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, org_id, org_name, project_id, user_id, user_name, event, created, content
		FROM audit_logs WHERE report_id = ? ORDER BY seq`, rep.ID)
	if err != nil {
		return fmt.Errorf("reading entries of %s: %w", rep.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                 client.AuditLogEntry
			orgName, userName *string
			content           *string
		)
		if err := rows.Scan(&e.GroupID, &e.OrgID, &orgName, &e.ProjectID, &e.UserID, &userName,
			&e.Event, &e.Created, &content); err != nil {
			return fmt.Errorf("scanning entry of %s: %w", rep.ID, err)
		}
		for _, p := range []*string{&e.GroupID, &e.OrgID, &e.ProjectID, &e.UserID, &e.Event, &e.Created} {
			if *p == export.NotAvailable {
				*p = ""
			}
		}
		if content != nil {
			if err := json.Unmarshal([]byte(*content), &e.Content); err != nil {
				return fmt.Errorf("entry content of %s: %w", rep.ID, err)
			}
		}
		if orgName != nil && e.OrgID != "" {
			rep.Orgs[e.OrgID] = client.EntitySummary{ID: e.OrgID, Kind: client.KindOrg, DisplayName: *orgName}
		}
		if userName != nil && e.UserID != "" {
			rep.Users[client.UserKey(e.OrgID, e.UserID)] = client.EntitySummary{
				ID: e.UserID, Kind: client.KindUser, DisplayName: *userName,
			}
		}
		rep.Entries = append(rep.Entries, e)
	}
	return rows.Err()
}

// Copy writes every report in src to dst, verifying the stored entry count
// of each. Reports already present in dst are skipped. With dryRun nothing
// is written.
func Copy(ctx context.Context, src *SQLiteStore, dst Sink, dryRun bool, log *logrus.Logger) (CopyResult, error) {
	res := CopyResult{DryRun: dryRun}

	reports, err := src.LoadReports(ctx)
	if err != nil {
		return res, err
	}
	res.ReportsRead = len(reports)
	for _, rep := range reports {
		res.EntriesRead += len(rep.Entries)
	}
	log.WithFields(logrus.Fields{
		"reports": res.ReportsRead,
		"entries": res.EntriesRead,
	}).Info("read reports from sqlite")

	if dryRun {
		log.Info("dry run, skipping writes")
		return res, nil
	}

	for _, rep := range reports {
		exists, err := dst.HasReport(ctx, rep.ID)
		if err != nil {
			return res, err
		}
		if exists {
			log.WithField("report_id", rep.ID).Info("report already stored, skipping")
			res.ReportsSkipped++
			continue
		}

		n, err := dst.SaveReport(ctx, rep)
		if err != nil {
			return res, fmt.Errorf("copying report %s: %w", rep.ID, err)
		}
		verified, err := dst.CountEntries(ctx, rep.ID)
		if err != nil {
			return res, err
		}
		if verified != len(rep.Entries) {
			return res, fmt.Errorf("report %s: stored %d of %d entries", rep.ID, verified, len(rep.Entries))
		}
		res.ReportsCopied++
		res.EntriesCopied += n
	}
	return res, nil
}
