package api

import (
	"context"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/service"
)

// ReportBuilder fetches and enriches every page of an audit-log query.
type ReportBuilder interface {
	Build(ctx context.Context, spec client.QuerySpec) (*service.Report, error)
}

// OrgLister lists the organizations visible to the API key.
type OrgLister interface {
	List(ctx context.Context) client.ListResult
}

// ConfigStore reads and writes the persisted configuration.
type ConfigStore interface {
	Redacted() (map[string]string, error)
	Set(updates map[string]string) error
}

// HealthChecker reports database reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// QueryDefaults are applied when a request omits the corresponding parameter.
type QueryDefaults struct {
	OrgID    string
	GroupID  string
	FromDate string
	ToDate   string
	PageSize int
	MaxPages int
}

// DefaultsFunc returns the current defaults. It is called per request so
// that saved configuration takes effect without a restart.
type DefaultsFunc func() QueryDefaults
