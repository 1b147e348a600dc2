package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/persistorai/auditscope/internal/service"
)

// document is the JSON and YAML representation of a report.
type document struct {
	ID          string                  `json:"id" yaml:"id"`
	ScopeType   string                  `json:"scope_type" yaml:"scope_type"`
	ScopeID     string                  `json:"scope_id" yaml:"scope_id"`
	From        string                  `json:"from" yaml:"from"`
	To          string                  `json:"to" yaml:"to"`
	Pages       int                     `json:"pages" yaml:"pages"`
	Truncated   bool                    `json:"truncated" yaml:"truncated"`
	GeneratedAt string                  `json:"generated_at" yaml:"generated_at"`
	Total       int                     `json:"total" yaml:"total"`
	Entries     []Record                `json:"entries" yaml:"entries"`
	Failures    []service.LookupFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func newDocument(rep *service.Report) document {
	return document{
		ID:          rep.ID,
		ScopeType:   rep.ScopeType,
		ScopeID:     rep.ScopeID,
		From:        rep.From,
		To:          rep.To,
		Pages:       rep.Pages,
		Truncated:   rep.Truncated,
		GeneratedAt: rep.GeneratedAt.Format("2006-01-02T15:04:05Z"),
		Total:       len(rep.Entries),
		Entries:     Records(rep),
		Failures:    rep.Failures,
	}
}

func writeJSON(w io.Writer, rep *service.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newDocument(rep))
}

func writeYAML(w io.Writer, rep *service.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(rep)); err != nil {
		return err
	}
	return enc.Close()
}

func writeCSV(w io.Writer, rep *service.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	records := Records(rep)
	for i := range records {
		if err := cw.Write(records[i].cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeTable prints aligned columns followed by a one-line summary.
func writeTable(w io.Writer, rep *service.Report) error {
	records := Records(rep)
	rows := make([][]string, len(records))
	for i := range records {
		rows[i] = records[i].cells()
	}

	widths := make([]int, len(columns))
	for i, h := range columns {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}

	printRow(columns)
	seps := make([]string, len(columns))
	for i, width := range widths {
		seps[i] = strings.Repeat("-", width)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
	fmt.Fprintf(&b, "\n%d entries, %d pages, %s to %s\n", len(records), rep.Pages, rep.From, rep.To)

	_, err := io.WriteString(w, b.String())
	return err
}
