// Package export renders audit reports as table, JSON, YAML, CSV or HTML.
package export

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/persistorai/auditscope/internal/service"
)

// Supported output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatCSV   = "csv"
	FormatHTML  = "html"
)

// NotAvailable is rendered for missing fields.
const NotAvailable = "N/A"

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

type writerFunc func(io.Writer, *service.Report) error

var writers = map[string]writerFunc{
	FormatTable: writeTable,
	FormatJSON:  writeJSON,
	FormatYAML:  writeYAML,
	FormatCSV:   writeCSV,
	FormatHTML:  writeHTML,
}

var contentTypes = map[string]string{
	FormatTable: "text/plain; charset=utf-8",
	FormatJSON:  "application/json",
	FormatYAML:  "application/yaml",
	FormatCSV:   "text/csv; charset=utf-8",
	FormatHTML:  "text/html; charset=utf-8",
}

// Formats returns the supported format names, sorted.
func Formats() []string {
	out := make([]string, 0, len(writers))
	for f := range writers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether format can be written.
func Supported(format string) bool {
	_, ok := writers[strings.ToLower(format)]
	return ok
}

// Write renders rep to w in the given format.
func Write(w io.Writer, format string, rep *service.Report) error {
	fn, ok := writers[strings.ToLower(format)]
	if !ok {
		return fmt.Errorf("%q (want one of %s): %w", format, strings.Join(Formats(), ", "), ErrUnknownFormat)
	}
	if err := fn(w, rep); err != nil {
		return fmt.Errorf("writing %s: %w", format, err)
	}
	return nil
}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	if ct, ok := contentTypes[strings.ToLower(format)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// DefaultFilename returns the output file name used when none is given,
// e.g. "audit_logs_2024-05-01T10-00-00.csv". Table output has no file.
func DefaultFilename(format string, at time.Time) string {
	format = strings.ToLower(format)
	if format == FormatTable {
		return ""
	}
	stamp := at.UTC().Format("2006-01-02T15-04-05")
	if format == FormatHTML {
		return "audit_logs_report_" + stamp + ".html"
	}
	return "audit_logs_" + stamp + "." + format
}

// Record is one entry flattened with resolved entity names.
type Record struct {
	Index     int            `json:"index" yaml:"index"`
	Time      string         `json:"time" yaml:"time"`
	Event     string         `json:"event" yaml:"event"`
	GroupID   string         `json:"group_id,omitempty" yaml:"group_id,omitempty"`
	OrgID     string         `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	OrgName   string         `json:"org_name,omitempty" yaml:"org_name,omitempty"`
	ProjectID string         `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	UserID    string         `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	UserName  string         `json:"user_name,omitempty" yaml:"user_name,omitempty"`
	Content   map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
}

// Records flattens rep's entries in order. Index starts at 1. Names are
// left empty when the lookup failed.
func Records(rep *service.Report) []Record {
	out := make([]Record, len(rep.Entries))
	for i := range rep.Entries {
		e := &rep.Entries[i]
		r := Record{
			Index:     i + 1,
			Time:      e.Created,
			Event:     e.Event,
			GroupID:   e.GroupID,
			OrgID:     e.OrgID,
			ProjectID: e.ProjectID,
			UserID:    e.UserID,
			Content:   e.Content,
		}
		if o, ok := rep.Org(e.OrgID); ok {
			r.OrgName = o.DisplayName
		}
		if e.UserID != "" {
			if u, ok := rep.User(e.OrgID, e.UserID); ok {
				r.UserName = u.DisplayName
			}
		}
		out[i] = r
	}
	return out
}

// Columns shared by the table and CSV writers.
var columns = []string{"#", "Group ID", "Org ID", "Project ID", "User ID", "Event", "Time"}

func (r *Record) cells() []string {
	return []string{
		fmt.Sprint(r.Index),
		OrNA(r.GroupID),
		OrNA(r.OrgID),
		OrNA(r.ProjectID),
		OrNA(r.UserID),
		OrNA(r.Event),
		OrNA(r.Time),
	}
}

// OrNA returns s, or NotAvailable when s is empty.
func OrNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}
