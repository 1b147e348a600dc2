package client

import (
	"encoding/json"
	"fmt"
)

// Scope types accepted by the audit-log search endpoints.
const (
	ScopeOrg   = "org"
	ScopeGroup = "group"
)

// Pagination defaults.
const (
	DefaultPageSize = 100
	DefaultMaxPages = 100
)

// AuditLogEntry is a single audit event, normalized from either upstream
// envelope shape.
type AuditLogEntry struct {
	Event     string         `json:"event"`
	Created   string         `json:"created"`
	UserID    string         `json:"user_id,omitempty"`
	OrgID     string         `json:"org_id,omitempty"`
	ProjectID string         `json:"project_id,omitempty"`
	GroupID   string         `json:"group_id,omitempty"`
	Content   map[string]any `json:"content,omitempty"`
}

// IsSystemEvent reports whether the event has no acting user.
func (e *AuditLogEntry) IsSystemEvent() bool {
	return e.UserID == ""
}

// UnmarshalJSON accepts both snake_case and camelCase field names and lifts
// group_id out of content when it is not present at the top level.
func (e *AuditLogEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("audit log entry: expected object, got null")
	}

	*e = AuditLogEntry{
		Event:     firstString(raw, "event", "eventName", "event_name"),
		Created:   firstString(raw, "created", "createdAt", "created_at"),
		UserID:    firstString(raw, "user_id", "userId"),
		OrgID:     firstString(raw, "org_id", "orgId"),
		ProjectID: firstString(raw, "project_id", "projectId"),
		GroupID:   firstString(raw, "group_id", "groupId"),
	}
	if content, ok := raw["content"].(map[string]any); ok {
		e.Content = content
		if e.GroupID == "" {
			e.GroupID = firstString(content, "group_id", "groupId")
		}
	}
	return nil
}

// firstString returns the first non-empty string value among keys.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// QuerySpec fully describes one logical audit-log query.
type QuerySpec struct {
	ScopeType string
	ScopeID   string
	FromDate  string
	ToDate    string
	Event     string // optional filter[event]
	UserID    string // optional filter[userId]
	PageSize  int
	MaxPages  int
}

// Validate checks the query and fills zero-valued paging fields with defaults.
func (s *QuerySpec) Validate() error {
	if s.ScopeType != ScopeOrg && s.ScopeType != ScopeGroup {
		return fmt.Errorf("%q: %w", s.ScopeType, ErrInvalidScopeType)
	}
	if s.ScopeID == "" {
		return ErrMissingScopeID
	}
	if s.PageSize == 0 {
		s.PageSize = DefaultPageSize
	}
	if s.MaxPages == 0 {
		s.MaxPages = DefaultMaxPages
	}
	if s.PageSize < 1 {
		return fmt.Errorf("page size must be >= 1, got %d", s.PageSize)
	}
	if s.MaxPages < 1 {
		return fmt.Errorf("max pages must be >= 1, got %d", s.MaxPages)
	}
	return nil
}

// Page is one normalized page of search results.
type Page struct {
	Entries []AuditLogEntry `json:"entries"`
	HasMore bool            `json:"has_more"`
	Total   int             `json:"total"`
}

// FetchResult is the accumulated output of FetchAll.
type FetchResult struct {
	Entries   []AuditLogEntry `json:"entries"`
	Pages     int             `json:"pages"`
	Truncated bool            `json:"truncated"`
	From      string          `json:"from"`
	To        string          `json:"to"`
}

// Err returns ErrPaginationTruncated when the page cap cut the result short.
func (r *FetchResult) Err() error {
	if r.Truncated {
		return ErrPaginationTruncated
	}
	return nil
}

// Entity kinds.
const (
	KindUser = "user"
	KindOrg  = "org"
)

// EntitySummary is a human-readable view of a user or organization.
type EntitySummary struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
	Slug        string `json:"slug,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
}

// LookupError is the tagged failure value returned by entity lookups.
type LookupError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup failed (%d): %s", e.Status, e.Message)
}

// LookupResult holds either a resolved entity or a LookupError.
type LookupResult struct {
	Entity *EntitySummary
	Err    *LookupError
}

// OK reports whether the lookup resolved.
func (r LookupResult) OK() bool {
	return r.Err == nil && r.Entity != nil
}

// ListResult holds either the organization list or a LookupError.
type ListResult struct {
	Orgs []EntitySummary
	Err  *LookupError
}

// OK reports whether the list call resolved.
func (r ListResult) OK() bool {
	return r.Err == nil
}
