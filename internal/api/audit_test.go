package api_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/api"
	"github.com/persistorai/auditscope/internal/service"
)

type listBody struct {
	ID         string                  `json:"id"`
	ScopeType  string                  `json:"scope_type"`
	ScopeID    string                  `json:"scope_id"`
	Entries    []client.AuditLogEntry  `json:"entries"`
	Total      int                     `json:"total"`
	Fetched    int                     `json:"fetched"`
	OrgOptions []map[string]string     `json:"org_options"`
	Groups     []map[string]string     `json:"group_options"`
	Taxonomy   []map[string]any        `json:"taxonomy"`
	Categories []map[string]any        `json:"categories"`
	Failures   []service.LookupFailure `json:"failures"`
}

func decodeList(t *testing.T, body []byte) listBody {
	t.Helper()

	var out listBody
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	return out
}

func TestAuditList_UsesDefaults(t *testing.T) {
	reports := &mockReports{}
	r := newTestRouter(t, &api.RouterDeps{
		Reports: reports,
		Defaults: func() api.QueryDefaults {
			return api.QueryDefaults{OrgID: "orgA", GroupID: "grp", PageSize: 50, MaxPages: 3}
		},
	})

	w := doRequest(r, http.MethodGet, "/api/v1/audit-logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(reports.specs) != 1 {
		t.Fatalf("expected 1 build, got %d", len(reports.specs))
	}

	spec := reports.specs[0]
	if spec.ScopeType != client.ScopeOrg || spec.ScopeID != "orgA" {
		t.Errorf("org should win over group, got %s/%s", spec.ScopeType, spec.ScopeID)
	}

	if spec.PageSize != 50 || spec.MaxPages != 3 {
		t.Errorf("expected paging 50/3, got %d/%d", spec.PageSize, spec.MaxPages)
	}

	body := decodeList(t, w.Body.Bytes())
	if body.Total != 3 || body.Fetched != 3 || len(body.Entries) != 3 {
		t.Errorf("expected 3 entries, got total=%d fetched=%d", body.Total, body.Fetched)
	}

	if len(body.OrgOptions) != 2 || body.OrgOptions[0]["name"] != "Acme" {
		t.Errorf("unexpected org options: %v", body.OrgOptions)
	}

	if len(body.Groups) != 1 || body.Groups[0]["name"] != "Group grp-1234..." {
		t.Errorf("unexpected group options: %v", body.Groups)
	}

	if len(body.Taxonomy) != 2 {
		t.Errorf("expected 2 taxonomy roots, got %d", len(body.Taxonomy))
	}

	if w.Header().Get(api.TruncatedHeader) != "" {
		t.Error("truncation header set on complete result")
	}
}

func TestAuditList_ExplicitScopeAndFilters(t *testing.T) {
	reports := &mockReports{}
	r := newTestRouter(t, &api.RouterDeps{Reports: reports})

	w := doRequest(r, http.MethodGet,
		"/api/v1/audit-logs?scope=group&id=grp-1&from=2024-05-01T00:00:00Z&to=2024-05-03T00:00:00Z&category=org&org=orgB&page_size=5000", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	spec := reports.specs[0]
	if spec.ScopeType != client.ScopeGroup || spec.ScopeID != "grp-1" {
		t.Errorf("unexpected scope %s/%s", spec.ScopeType, spec.ScopeID)
	}

	if spec.FromDate != "2024-05-01T00:00:00Z" || spec.ToDate != "2024-05-03T00:00:00Z" {
		t.Errorf("unexpected dates %s..%s", spec.FromDate, spec.ToDate)
	}

	if spec.PageSize != 1000 {
		t.Errorf("page size should be capped at 1000, got %d", spec.PageSize)
	}

	body := decodeList(t, w.Body.Bytes())
	if body.Total != 1 || body.Fetched != 3 {
		t.Fatalf("expected 1 of 3 entries, got %d of %d", body.Total, body.Fetched)
	}

	if body.Entries[0].UserID != "u2" {
		t.Errorf("unexpected entry %+v", body.Entries[0])
	}
}

func TestAuditList_Truncated(t *testing.T) {
	reports := &mockReports{buildFn: func(_ context.Context, spec client.QuerySpec) (*service.Report, error) {
		rep := sampleReport(spec)
		rep.Truncated = true
		return rep, nil
	}}
	r := newTestRouter(t, &api.RouterDeps{Reports: reports})

	w := doRequest(r, http.MethodGet, "/api/v1/audit-logs", "")
	if w.Header().Get(api.TruncatedHeader) != "true" {
		t.Errorf("expected %s: true", api.TruncatedHeader)
	}
}

func TestAuditList_Errors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		defaults api.QueryDefaults
		buildErr error
		want     int
		code     string
	}{
		{"no scope", "", api.QueryDefaults{}, nil, http.StatusBadRequest, "validation_error"},
		{"bad scope type", "?scope=team&id=x", api.QueryDefaults{}, nil, http.StatusBadRequest, "validation_error"},
		{"bad date", "?from=yesterday&to=2024-05-01T00:00:00Z", api.QueryDefaults{OrgID: "o"}, nil, http.StatusBadRequest, "validation_error"},
		{"reversed dates", "?from=2024-05-02T00:00:00Z&to=2024-05-01T00:00:00Z", api.QueryDefaults{OrgID: "o"}, nil, http.StatusBadRequest, "validation_error"},
		{"upstream 404", "", api.QueryDefaults{OrgID: "o"}, &client.APIError{StatusCode: 404, Message: "Org not found"}, http.StatusNotFound, "not_found"},
		{"upstream 429", "", api.QueryDefaults{OrgID: "o"}, &client.APIError{StatusCode: 429, Message: "slow down"}, http.StatusTooManyRequests, "rate_limited"},
		{"upstream 401", "", api.QueryDefaults{OrgID: "o"}, &client.APIError{StatusCode: 401, Message: "bad token"}, http.StatusBadGateway, "upstream_error"},
		{"bad envelope", "", api.QueryDefaults{OrgID: "o"}, &client.FormatError{Body: "{}"}, http.StatusBadGateway, "upstream_error"},
		{"internal", "", api.QueryDefaults{OrgID: "o"}, errBoom, http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reports := &mockReports{buildFn: func(context.Context, client.QuerySpec) (*service.Report, error) {
				if tc.buildErr != nil {
					return nil, tc.buildErr
				}
				return sampleReport(client.QuerySpec{}), nil
			}}
			defaults := tc.defaults
			r := newTestRouter(t, &api.RouterDeps{
				Reports:  reports,
				Defaults: func() api.QueryDefaults { return defaults },
			})

			w := doRequest(r, http.MethodGet, "/api/v1/audit-logs"+tc.query, "")
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["code"] != tc.code {
				t.Errorf("expected code %q, got %q", tc.code, body["code"])
			}
			if body["request_id"] == "" {
				t.Error("expected request_id in error body")
			}
		})
	}
}

func TestAuditExport_CSV(t *testing.T) {
	r := newTestRouter(t, &api.RouterDeps{})

	w := doRequest(r, http.MethodGet, "/api/v1/audit-logs/export?format=csv&user_id=u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}

	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "audit_logs_2024-05-08T00-00-00.csv") {
		t.Errorf("unexpected content disposition %q", cd)
	}

	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 2 || rows[1][4] != "u1" {
		t.Errorf("expected header + 1 row for u1, got %v", rows)
	}
}

func TestAuditExport_HTMLAllowsInlineStyles(t *testing.T) {
	r := newTestRouter(t, &api.RouterDeps{})

	w := doRequest(r, http.MethodGet, "/api/v1/audit-logs/export?format=html", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if csp := w.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "style-src 'unsafe-inline'") {
		t.Errorf("unexpected CSP %q", csp)
	}

	if !strings.Contains(w.Body.String(), "Acme") {
		t.Error("expected org name in HTML report")
	}
}

func TestAuditExport_UnknownFormat(t *testing.T) {
	reports := &mockReports{}
	r := newTestRouter(t, &api.RouterDeps{Reports: reports})

	w := doRequest(r, http.MethodGet, "/api/v1/audit-logs/export?format=pdf", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	if len(reports.specs) != 0 {
		t.Error("unsupported format must not reach upstream")
	}
}
