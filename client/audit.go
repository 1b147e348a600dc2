package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
)

// AuditService handles audit-log search.
type AuditService struct {
	c *Client
}

// searchPath returns the scope-specific search endpoint.
func searchPath(scopeType, scopeID string) (string, error) {
	switch scopeType {
	case ScopeOrg:
		return "/rest/orgs/" + url.PathEscape(scopeID) + "/audit_logs/search", nil
	case ScopeGroup:
		return "/rest/groups/" + url.PathEscape(scopeID) + "/audit_logs/search", nil
	default:
		return "", fmt.Errorf("%q: %w", scopeType, ErrInvalidScopeType)
	}
}

// QueryPage fetches a single page (1-based) of audit-log entries.
func (s *AuditService) QueryPage(ctx context.Context, spec QuerySpec, page int) (*Page, error) {
	path, err := searchPath(spec.ScopeType, spec.ScopeID)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	from, to, err := ResolveDateRange(spec.FromDate, spec.ToDate)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("from", from)
	params.Set("to", to)
	params.Set("page[size]", strconv.Itoa(spec.PageSize))
	params.Set("page[number]", strconv.Itoa(page))
	if spec.Event != "" {
		params.Set("filter[event]", spec.Event)
	}
	if spec.UserID != "" {
		params.Set("filter[userId]", spec.UserID)
	}

	body, err := s.c.get(ctx, "audit_logs.search", path, params)
	if err != nil {
		return nil, err
	}
	return decodePage(body)
}

// FetchAll walks the search results page by page, starting at page 1, until
// the upstream reports no more data or MaxPages pages have been read. Pages
// are fetched sequentially and concatenated in order. Any page failure aborts
// the walk and discards partial results.
func (s *AuditService) FetchAll(ctx context.Context, spec QuerySpec) (*FetchResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if _, err := searchPath(spec.ScopeType, spec.ScopeID); err != nil {
		return nil, err
	}

	// Pin the window once so every page sees the same range even when the
	// default window is relative to the wall clock.
	if IsPartialRange(spec.FromDate, spec.ToDate) {
		s.c.log.WithFields(logrus.Fields{
			"from": spec.FromDate,
			"to":   spec.ToDate,
		}).Debug("partial date range ignored, using default window")
	}
	from, to, err := ResolveDateRange(spec.FromDate, spec.ToDate)
	if err != nil {
		return nil, err
	}
	spec.FromDate, spec.ToDate = from, to

	result := &FetchResult{Entries: []AuditLogEntry{}, From: from, To: to}
	hasMore := true
	for page := 1; hasMore; page++ {
		if page > spec.MaxPages {
			result.Truncated = true
			s.c.log.WithFields(logrus.Fields{
				"max_pages": spec.MaxPages,
				"entries":   len(result.Entries),
			}).Warn("reached maximum number of pages, results are incomplete")
			break
		}

		s.c.log.WithFields(logrus.Fields{
			"scope": spec.ScopeType,
			"page":  page,
		}).Debug("retrieving audit log page")

		p, err := s.QueryPage(ctx, spec, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		result.Entries = append(result.Entries, p.Entries...)
		result.Pages = page
		hasMore = p.HasMore
	}
	return result, nil
}
