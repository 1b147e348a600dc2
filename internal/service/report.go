package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/metrics"
)

// Report is the result of one logical "all audit logs for scope X over range
// Y" request: the ordered entries plus entity directories.
type Report struct {
	ID          string    `json:"id"`
	ScopeType   string    `json:"scope_type"`
	ScopeID     string    `json:"scope_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Pages       int       `json:"pages"`
	Truncated   bool      `json:"truncated"`
	GeneratedAt time.Time `json:"generated_at"`
	Enriched
}

// Reporter fetches every page of a query and enriches the result.
type Reporter struct {
	fetcher  AuditFetcher
	enricher *Enricher
	log      *logrus.Logger
	retries  uint64
	backoff  time.Duration
	now      func() time.Time
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithRetries retries the whole fetch up to n extra times on retryable
// upstream failures, with exponential backoff starting at base.
func WithRetries(n int, base time.Duration) ReporterOption {
	return func(r *Reporter) {
		if n > 0 {
			r.retries = uint64(n)
		}
		if base > 0 {
			r.backoff = base
		}
	}
}

// NewReporter creates a Reporter.
func NewReporter(fetcher AuditFetcher, enricher *Enricher, log *logrus.Logger, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		fetcher:  fetcher,
		enricher: enricher,
		log:      log,
		backoff:  500 * time.Millisecond,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Build runs the fetch and enrichment for spec. Fetch failures abort the
// report; lookup failures are reported in Failures. A truncated fetch still
// yields a report with Truncated set.
func (r *Reporter) Build(ctx context.Context, spec client.QuerySpec) (*Report, error) {
	res, err := r.fetch(ctx, spec)
	if err != nil {
		return nil, err
	}
	if res.Truncated {
		metrics.TruncatedFetches.Inc()
	}

	enriched := r.enricher.Enrich(ctx, res.Entries)
	rep := &Report{
		ID:          uuid.NewString(),
		ScopeType:   spec.ScopeType,
		ScopeID:     spec.ScopeID,
		From:        res.From,
		To:          res.To,
		Pages:       res.Pages,
		Truncated:   res.Truncated,
		GeneratedAt: r.now().UTC(),
		Enriched:    *enriched,
	}

	r.log.WithFields(logrus.Fields{
		"report_id": rep.ID,
		"scope":     spec.ScopeType,
		"scope_id":  spec.ScopeID,
		"entries":   len(rep.Entries),
		"pages":     rep.Pages,
		"truncated": rep.Truncated,
	}).Info("audit report built")
	return rep, nil
}

// fetch calls FetchAll, retrying the whole walk on retryable errors. Page
// GETs are idempotent, so restarting from page 1 is safe.
func (r *Reporter) fetch(ctx context.Context, spec client.QuerySpec) (*client.FetchResult, error) {
	var res *client.FetchResult
	attempt := 0
	b := retry.WithMaxRetries(r.retries, retry.NewExponential(r.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		out, err := r.fetcher.FetchAll(ctx, spec)
		if err == nil {
			res = out
			return nil
		}
		if client.IsRetryable(err) && ctx.Err() == nil {
			r.log.WithError(err).WithField("attempt", attempt).Warn("audit log fetch failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("fetch").Inc()
		return nil, fmt.Errorf("fetching audit logs: %w", err)
	}
	return res, nil
}

// WithEntries returns a shallow copy of r carrying entries instead of the
// fetched list. Directories and metadata are shared.
func (r *Report) WithEntries(entries []client.AuditLogEntry) *Report {
	out := *r
	out.Entries = entries
	return &out
}
