package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/config"
	"github.com/persistorai/auditscope/internal/export"
	"github.com/persistorai/auditscope/internal/service"
	"github.com/persistorai/auditscope/internal/store"
)

func init() {
	log.SetOutput(io.Discard)
}

// fakeReports implements reportBuilder and records the specs it receives.
type fakeReports struct {
	rep   *service.Report
	err   error
	specs []client.QuerySpec
}

func (f *fakeReports) Build(_ context.Context, spec client.QuerySpec) (*service.Report, error) {
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	return f.rep, nil
}

func testReport() *service.Report {
	return &service.Report{
		ID:          "11111111-2222-3333-4444-555555555555",
		ScopeType:   client.ScopeOrg,
		ScopeID:     "orgA",
		From:        "2024-05-01T00:00:00Z",
		To:          "2024-05-08T00:00:00Z",
		Pages:       1,
		GeneratedAt: time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC),
		Enriched: service.Enriched{
			Entries: []client.AuditLogEntry{
				{Event: "org.project.add", Created: "2024-05-01T10:00:00Z", UserID: "u1", OrgID: "orgA"},
				{Event: "org.user.invite", Created: "2024-05-02T10:00:00Z", OrgID: "orgA"},
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

func baseOptions(format string) *fetchOptions {
	return &fetchOptions{
		OrgID:    "orgA",
		FromDate: "2024-05-01T00:00:00Z",
		ToDate:   "2024-05-08T00:00:00Z",
		PageSize: 100,
		MaxPages: 10,
		Format:   format,
	}
}

func TestRunFetch_WritesCSVFile(t *testing.T) {
	reports := &fakeReports{rep: testReport()}
	opts := baseOptions(export.FormatCSV)
	opts.OutputFile = filepath.Join(t.TempDir(), "out.csv")

	var stdout, stderr bytes.Buffer
	if err := runFetch(context.Background(), reports, opts, &stdout, &stderr); err != nil {
		t.Fatalf("runFetch: %v", err)
	}

	if len(reports.specs) != 1 {
		t.Fatalf("expected 1 build, got %d", len(reports.specs))
	}
	spec := reports.specs[0]
	if spec.ScopeType != client.ScopeOrg || spec.ScopeID != "orgA" || spec.PageSize != 100 || spec.MaxPages != 10 {
		t.Errorf("unexpected spec: %+v", spec)
	}

	f, err := os.Open(opts.OutputFile)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[2][4] != export.NotAvailable {
		t.Errorf("system event user column: got %q, want %q", rows[2][4], export.NotAvailable)
	}

	if stdout.Len() != 0 {
		t.Errorf("expected nothing on stdout, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "Exported 2 entries") {
		t.Errorf("stderr: %q", stderr.String())
	}
}

func TestRunFetch_OrgWinsOverGroup(t *testing.T) {
	reports := &fakeReports{rep: testReport()}
	opts := baseOptions(export.FormatJSON)
	opts.GroupID = "grp1"
	opts.OutputFile = "-"

	var stdout, stderr bytes.Buffer
	if err := runFetch(context.Background(), reports, opts, &stdout, &stderr); err != nil {
		t.Fatalf("runFetch: %v", err)
	}
	if got := reports.specs[0]; got.ScopeType != client.ScopeOrg || got.ScopeID != "orgA" {
		t.Errorf("expected org scope, got %s/%s", got.ScopeType, got.ScopeID)
	}
	if !strings.Contains(stderr.String(), "using org orgA") {
		t.Errorf("expected scope warning, got %q", stderr.String())
	}

	var doc struct {
		Total   int `json:"total"`
		Entries []struct {
			UserName string `json:"user_name"`
			OrgName  string `json:"org_name"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if doc.Total != 2 || doc.Entries[0].UserName != "Ada" || doc.Entries[0].OrgName != "Acme" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestRunFetch_GroupScope(t *testing.T) {
	reports := &fakeReports{rep: testReport()}
	opts := baseOptions(export.FormatTable)
	opts.OrgID = ""
	opts.GroupID = "grp1"

	if err := runFetch(context.Background(), reports, opts, io.Discard, io.Discard); err != nil {
		t.Fatalf("runFetch: %v", err)
	}
	if got := reports.specs[0]; got.ScopeType != client.ScopeGroup || got.ScopeID != "grp1" {
		t.Errorf("expected group scope, got %s/%s", got.ScopeType, got.ScopeID)
	}
}

func TestRunFetch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *fetchOptions)
		want   error
	}{
		{"no scope", func(o *fetchOptions) { o.OrgID = "" }, service.ErrNoScope},
		{"unknown format", func(o *fetchOptions) { o.Format = "xml" }, export.ErrUnknownFormat},
		{"malformed date", func(o *fetchOptions) { o.FromDate = "2024-05-01" }, client.ErrInvalidDateFormat},
		{"reversed range", func(o *fetchOptions) {
			o.FromDate, o.ToDate = o.ToDate, o.FromDate
		}, client.ErrInvalidDateRange},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reports := &fakeReports{rep: testReport()}
			opts := baseOptions(export.FormatTable)
			tc.mutate(opts)

			err := runFetch(context.Background(), reports, opts, io.Discard, io.Discard)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(reports.specs) != 0 {
				t.Error("reporter should not be called for invalid input")
			}
		})
	}
}

func TestRunFetch_BuildError(t *testing.T) {
	boom := &client.APIError{StatusCode: http.StatusUnauthorized, Message: "bad token"}
	reports := &fakeReports{err: boom}

	err := runFetch(context.Background(), reports, baseOptions(export.FormatTable), io.Discard, io.Discard)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestRunFetch_FilterAndWarnings(t *testing.T) {
	rep := testReport()
	rep.Truncated = true
	rep.Pages = 10
	rep.Failures = []service.LookupFailure{{Kind: client.KindUser, Key: "orgA:u9", Status: 404}}
	reports := &fakeReports{rep: rep}

	opts := baseOptions(export.FormatTable)
	opts.EventPrefix = "org.project"

	var stdout, stderr bytes.Buffer
	if err := runFetch(context.Background(), reports, opts, &stdout, &stderr); err != nil {
		t.Fatalf("runFetch: %v", err)
	}

	if !strings.Contains(stdout.String(), "org.project.add") {
		t.Errorf("filtered table missing kept event:\n%s", stdout.String())
	}
	if strings.Contains(stdout.String(), "org.user.invite") {
		t.Errorf("filtered table contains dropped event:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "truncated after 10 pages") {
		t.Errorf("missing truncation warning: %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "1 user/org lookups failed") {
		t.Errorf("missing lookup warning: %q", stderr.String())
	}
	if len(rep.Entries) != 2 {
		t.Error("filtering must not modify the built report")
	}
}

func TestRunFetch_SQLite(t *testing.T) {
	ctx := context.Background()
	rep := testReport()
	opts := baseOptions(store.KindSQLite)
	opts.OutputFile = filepath.Join(t.TempDir(), "audit.db")

	var stderr bytes.Buffer
	if err := runFetch(ctx, &fakeReports{rep: rep}, opts, io.Discard, &stderr); err != nil {
		t.Fatalf("runFetch: %v", err)
	}
	if !strings.Contains(stderr.String(), "Stored 2 entries") {
		t.Errorf("stderr: %q", stderr.String())
	}

	s, err := store.OpenSQLite(ctx, opts.OutputFile, log)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	n, err := s.CountEntries(ctx, rep.ID)
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if n != 2 {
		t.Errorf("stored entries: got %d, want 2", n)
	}
}

func TestRunFetch_PostgresNeedsTarget(t *testing.T) {
	err := runFetch(context.Background(), &fakeReports{rep: testReport()}, baseOptions(store.KindPostgres), io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected missing target error, got %v", err)
	}
}

// TestFetch_EndToEnd drives the real client, enricher and exporter against a
// fake upstream. Users are cached per (org, user) and orgs per org.
func TestFetch_EndToEnd(t *testing.T) {
	var userCalls, orgCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/orgs/{org}/audit_logs/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token test-key" {
			t.Errorf("Authorization: got %q", got)
		}
		writeJSON(w, map[string]any{"data": map[string]any{"items": []any{
			map[string]any{"event": "org.project.add", "created": "2024-05-01T10:00:00Z", "org_id": "orgA", "user_id": "user1"},
			map[string]any{"event": "org.user.add", "created": "2024-05-01T11:00:00Z", "org_id": "orgB", "user_id": "user1"},
			map[string]any{"event": "org.project.delete", "created": "2024-05-01T12:00:00Z", "org_id": "orgA", "user_id": "user2"},
		}}})
	})
	mux.HandleFunc("GET /rest/orgs/{org}/users/{user}", func(w http.ResponseWriter, r *http.Request) {
		userCalls.Add(1)
		writeJSON(w, map[string]any{"data": map[string]any{
			"id": r.PathValue("user"), "type": "user",
			"attributes": map[string]any{"name": "Name " + r.PathValue("user")},
		}})
	})
	mux.HandleFunc("GET /rest/orgs/{org}", func(w http.ResponseWriter, r *http.Request) {
		orgCalls.Add(1)
		writeJSON(w, map[string]any{"data": map[string]any{
			"id": r.PathValue("org"), "type": "org",
			"attributes": map[string]any{"name": "Org " + r.PathValue("org")},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg = &config.Config{LookupConcurrency: 2}
	c := client.New(srv.URL, client.WithAPIKey("test-key"), client.WithLogger(log))
	reports := newReporter(c)

	opts := baseOptions(export.FormatJSON)
	opts.OutputFile = "-"
	var stdout bytes.Buffer
	if err := runFetch(context.Background(), reports, opts, &stdout, io.Discard); err != nil {
		t.Fatalf("runFetch: %v", err)
	}

	if got := userCalls.Load(); got != 3 {
		t.Errorf("user lookups: got %d, want 3", got)
	}
	if got := orgCalls.Load(); got != 2 {
		t.Errorf("org lookups: got %d, want 2", got)
	}

	var doc struct {
		Entries []struct {
			Event    string `json:"event"`
			OrgName  string `json:"org_name"`
			UserName string `json:"user_name"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if len(doc.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(doc.Entries))
	}
	if doc.Entries[1].OrgName != "Org orgB" || doc.Entries[2].UserName != "Name user2" {
		t.Errorf("names not resolved: %+v", doc.Entries)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func TestPersistingReporter_SavesAndPassesThrough(t *testing.T) {
	ctx := context.Background()
	sink, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "audit.db"), log)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer sink.Close()

	rep := testReport()
	p := &persistingReporter{next: &fakeReports{rep: rep}, sink: sink}
	got, err := p.Build(ctx, client.QuerySpec{ScopeType: client.ScopeOrg, ScopeID: "orgA"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got != rep {
		t.Error("expected the built report to be returned unchanged")
	}
	if n, _ := sink.CountEntries(ctx, rep.ID); n != 2 {
		t.Errorf("stored entries: got %d, want 2", n)
	}

	// A second save of the same report fails on the unique key but the
	// request still succeeds.
	if _, err := p.Build(ctx, client.QuerySpec{}); err != nil {
		t.Fatalf("Build after failed save: %v", err)
	}
}

func TestShowConfig(t *testing.T) {
	c := &config.Config{
		APIKey:      "super-secret",
		OrgID:       "o1",
		PageSize:    100,
		Port:        "3001",
		ListenHost:  "127.0.0.1",
		HTTPTimeout: 30 * time.Second,
		ConfigFile:  ".env",
	}

	var buf bytes.Buffer
	if err := showConfig(&buf, c, fmtJSON); err != nil {
		t.Fatalf("showConfig: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "super-secret") {
		t.Fatalf("API key leaked: %s", out)
	}
	for _, want := range []string{`"api_key": "[REDACTED]"`, `"org_id": "o1"`, `"listen": "127.0.0.1:3001"`, `"database": ""`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}

	if err := showConfig(&buf, c, fmtTable); err == nil {
		t.Error("expected table format to be rejected")
	}
}

func TestLoadDefaults_ReadsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	t.Setenv("CONFIG_FILE", path)
	for _, k := range config.StoreKeys {
		t.Setenv(k, "")
	}
	cfg = &config.Config{OrgID: "startup"}

	if err := config.NewEnvStore(path).Set(map[string]string{
		config.KeyAPIKey: "k",
		config.KeyOrgID:  "saved-org",
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	d := loadDefaults()
	if d.OrgID != "saved-org" {
		t.Errorf("OrgID: got %q, want saved-org", d.OrgID)
	}
	if d.PageSize != client.DefaultPageSize {
		t.Errorf("PageSize: got %d, want %d", d.PageSize, client.DefaultPageSize)
	}
}

func TestSetupLogLevel(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), ".env"))
	t.Setenv("LOG_LEVEL", "warn")
	flagLogLevel, flagDebug = "", false
	t.Cleanup(func() { log.SetLevel(logrus.InfoLevel); log.SetOutput(io.Discard) })

	if err := setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.SetOutput(io.Discard)
	if log.GetLevel() != logrus.WarnLevel {
		t.Errorf("level: got %v, want warn", log.GetLevel())
	}

	flagDebug = true
	defer func() { flagDebug = false }()
	if err := setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.SetOutput(io.Discard)
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level: got %v, want debug", log.GetLevel())
	}
}
