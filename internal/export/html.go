package export

import (
	"html/template"
	"io"
	"strings"

	"github.com/persistorai/auditscope/internal/analysis"
	"github.com/persistorai/auditscope/internal/service"
)

type eventPart struct {
	Class string
	Text  string
}

type htmlRow struct {
	Record
	Parts []eventPart
}

type htmlView struct {
	Report     *service.Report
	Generated  string
	Rows       []htmlRow
	Categories []analysis.Count
	Failures   int
}

var levelClasses = []string{"event-category", "event-subcategory", "event-action", "event-subaction"}

// eventParts splits an event name into color-coded levels; everything past
// the third dot belongs to the subaction.
func eventParts(event string) []eventPart {
	if event == "" {
		return nil
	}
	parts := strings.SplitN(event, ".", len(levelClasses))
	out := make([]eventPart, len(parts))
	for i, p := range parts {
		out[i] = eventPart{Class: levelClasses[i], Text: p}
	}
	return out
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"na": OrNA,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Audit Logs Report | {{.Generated}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; max-width: 1200px; margin: 0 auto; padding: 20px; }
h1 { color: #4b45a1; border-bottom: 1px solid #eee; padding-bottom: 10px; }
.info-box { background-color: #f8f9fa; border-left: 4px solid #4b45a1; padding: 15px; margin-bottom: 20px; border-radius: 4px; }
.warning { border-left-color: #fd7e14; }
table { width: 100%; border-collapse: collapse; margin: 20px 0; font-size: 14px; }
th { background-color: #4b45a1; color: white; text-align: left; padding: 12px; position: sticky; top: 0; }
td { padding: 10px 12px; border-bottom: 1px solid #ddd; max-width: 250px; overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
tr:nth-child(even) { background-color: #f8f9fa; }
.event-category { color: #205493; }
.event-subcategory { color: #6f42c1; }
.event-action { color: #28a745; }
.event-subaction { color: #fd7e14; }
.badge { display: inline-block; padding: 3px 7px; border-radius: 4px; font-size: 12px; font-weight: 600; margin-right: 5px; }
.badge-green { background-color: #e7f7e9; color: #28a745; border: 1px solid #bce7c8; }
.badge-blue { background-color: #e6f1ff; color: #0366d6; border: 1px solid #c8e1ff; }
.badge-purple { background-color: #f5f0ff; color: #6f42c1; border: 1px solid #e2ceff; }
.badge-pink { background-color: #ffeef8; color: #d73a49; border: 1px solid #f9c9df; }
.footer { margin-top: 30px; text-align: center; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px; }
</style>
</head>
<body>
<h1>Audit Logs Report</h1>
<div class="info-box">
<p><strong>Generated:</strong> {{.Generated}}</p>
<p><strong>Scope:</strong> {{.Report.ScopeType}} {{.Report.ScopeID}}</p>
<p><strong>Total logs:</strong> {{len .Rows}}</p>
<p><strong>Date range:</strong> {{.Report.From}} to {{.Report.To}}</p>
{{- if .Categories}}
<p><strong>By category:</strong>{{range .Categories}} <span class="badge badge-blue">{{.Key}}: {{.Count}}</span>{{end}}</p>
{{- end}}
</div>
{{- if .Report.Truncated}}
<div class="info-box warning"><p>Results were truncated after {{.Report.Pages}} pages; more events exist for this range.</p></div>
{{- end}}
{{- if .Failures}}
<div class="info-box warning"><p>{{.Failures}} user or organization lookups failed; IDs are shown instead of names.</p></div>
{{- end}}
<table>
<thead>
<tr><th>#</th><th>Time</th><th>Event</th><th>User</th><th>Group</th><th>Organization</th><th>Project</th></tr>
</thead>
<tbody>
{{- range .Rows}}
<tr>
<td>{{.Index}}</td>
<td>{{na .Time}}</td>
<td>{{if .Parts}}{{range $i, $p := .Parts}}{{if $i}}.{{end}}<span class="{{$p.Class}}">{{$p.Text}}</span>{{end}}{{else}}N/A{{end}}</td>
<td>{{if .UserID}}{{if .UserName}}{{.UserName}} {{end}}<span class="badge badge-blue">{{.UserID}}</span>{{else}}N/A{{end}}</td>
<td>{{if .GroupID}}<span class="badge badge-pink">{{.GroupID}}</span>{{else}}N/A{{end}}</td>
<td>{{if .OrgID}}{{if .OrgName}}{{.OrgName}} {{end}}<span class="badge badge-green">{{.OrgID}}</span>{{else}}N/A{{end}}</td>
<td>{{if .ProjectID}}<span class="badge badge-purple">{{.ProjectID}}</span>{{else}}N/A{{end}}</td>
</tr>
{{- end}}
</tbody>
</table>
<div class="footer"><p>Generated by auditscope</p></div>
</body>
</html>
`))

func writeHTML(w io.Writer, rep *service.Report) error {
	records := Records(rep)
	rows := make([]htmlRow, len(records))
	for i := range records {
		rows[i] = htmlRow{Record: records[i], Parts: eventParts(records[i].Event)}
	}
	return reportTemplate.Execute(w, htmlView{
		Report:     rep,
		Generated:  rep.GeneratedAt.Format("2006-01-02 15:04:05 UTC"),
		Rows:       rows,
		Categories: analysis.CountByCategory(rep.Entries),
		Failures:   len(rep.Failures),
	})
}
