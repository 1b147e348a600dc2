// Package service joins paginated audit-log fetches with entity lookups.
package service

import (
	"context"

	"github.com/persistorai/auditscope/client"
)

// AuditFetcher walks every page of an audit-log query.
type AuditFetcher interface {
	FetchAll(ctx context.Context, spec client.QuerySpec) (*client.FetchResult, error)
}

// UserLookup resolves a user observed under an organization.
type UserLookup interface {
	Get(ctx context.Context, orgID, userID string) client.LookupResult
}

// OrgLookup resolves an organization.
type OrgLookup interface {
	Get(ctx context.Context, orgID string) client.LookupResult
}
