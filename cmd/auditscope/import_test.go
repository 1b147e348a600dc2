package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/persistorai/auditscope/internal/store"
)

func TestRunImport_DryRun(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := store.OpenSQLite(ctx, path, log)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveReport(ctx, testReport()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	var out bytes.Buffer
	if err := runImport(ctx, path, "", true, &out); err != nil {
		t.Fatalf("runImport: %v", err)
	}
	for _, want := range []string{"DRY RUN", "Reports: 1 read, 0 copied", "Entries: 2 read", "Status: OK"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("missing %q in:\n%s", want, out.String())
		}
	}
}

func TestRunImport_Errors(t *testing.T) {
	ctx := context.Background()
	if err := runImport(ctx, filepath.Join(t.TempDir(), "missing.db"), "", true, &bytes.Buffer{}); err == nil {
		t.Error("expected error for missing export")
	}

	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := store.OpenSQLite(ctx, path, log)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	err = runImport(ctx, path, "", false, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("expected missing target error, got %v", err)
	}
}
