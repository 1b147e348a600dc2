package api_test

import (
	"context"
	"errors"
	"time"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/config"
	"github.com/persistorai/auditscope/internal/service"
)

// mockReports implements api.ReportBuilder for testing.
type mockReports struct {
	buildFn func(ctx context.Context, spec client.QuerySpec) (*service.Report, error)
	specs   []client.QuerySpec
}

func (m *mockReports) Build(ctx context.Context, spec client.QuerySpec) (*service.Report, error) {
	m.specs = append(m.specs, spec)
	if m.buildFn != nil {
		return m.buildFn(ctx, spec)
	}
	return sampleReport(spec), nil
}

func sampleReport(spec client.QuerySpec) *service.Report {
	return &service.Report{
		ID:          "rep-1",
		ScopeType:   spec.ScopeType,
		ScopeID:     spec.ScopeID,
		From:        "2024-05-01T00:00:00Z",
		To:          "2024-05-08T00:00:00Z",
		Pages:       1,
		GeneratedAt: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC),
		Enriched: service.Enriched{
			Entries: []client.AuditLogEntry{
				{Event: "org.project.add", Created: "2024-05-01T10:00:00Z", UserID: "u1", OrgID: "orgA"},
				{Event: "org.user.invite", Created: "2024-05-02T10:00:00Z", UserID: "u2", OrgID: "orgB", GroupID: "grp-123456789"},
				{Event: "group.sso.edit", Created: "2024-05-02T11:00:00Z", GroupID: "grp-123456789"},
			},
			Users: map[string]client.EntitySummary{
				client.UserKey("orgA", "u1"): {ID: "u1", DisplayName: "Ada"},
			},
			Orgs: map[string]client.EntitySummary{
				"orgA": {ID: "orgA", DisplayName: "Acme"},
			},
		},
	}
}

// mockOrgs implements api.OrgLister for testing.
type mockOrgs struct {
	res client.ListResult
}

func (m *mockOrgs) List(context.Context) client.ListResult {
	return m.res
}

// mockConfig implements api.ConfigStore for testing.
type mockConfig struct {
	values map[string]string
	setErr error
}

func (m *mockConfig) Redacted() (map[string]string, error) {
	out := map[string]string{}
	for k, v := range m.values {
		out[k] = v
	}
	if out[config.KeyAPIKey] != "" {
		out[config.KeyAPIKey] = "[REDACTED]"
	}
	return out, nil
}

func (m *mockConfig) Set(updates map[string]string) error {
	if m.setErr != nil {
		return m.setErr
	}
	for k, v := range updates {
		m.values[k] = v
	}
	return nil
}

// mockDB implements api.HealthChecker for testing.
type mockDB struct{ err error }

func (m mockDB) HealthCheck(context.Context) error { return m.err }

var errBoom = errors.New("boom")
