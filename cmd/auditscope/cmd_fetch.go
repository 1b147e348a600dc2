package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/analysis"
	"github.com/persistorai/auditscope/internal/export"
	"github.com/persistorai/auditscope/internal/service"
	"github.com/persistorai/auditscope/internal/store"
)

// reportBuilder is the part of service.Reporter that fetch needs.
type reportBuilder interface {
	Build(ctx context.Context, spec client.QuerySpec) (*service.Report, error)
}

// fetchOptions mirrors the fetch command's flags.
type fetchOptions struct {
	OrgID    string
	GroupID  string
	FromDate string
	ToDate   string
	PageSize int
	MaxPages int
	Event    string
	User     string

	Format     string
	OutputFile string
	// DatabaseURL is the fallback target for the postgres format.
	DatabaseURL string

	EventPrefix string
	Contains    string
	Exclude     []string
	FilterOrgs  []string
	FilterGroup []string
	FilterUser  string
}

func (o *fetchOptions) filter() analysis.Filter {
	f := analysis.ParseEventPrefix(o.EventPrefix)
	f.EventContains = o.Contains
	f.Excluded = o.Exclude
	f.OrgIDs = o.FilterOrgs
	f.GroupIDs = o.FilterGroup
	f.UserID = o.FilterUser
	return f
}

func outputFormats() []string {
	return append(export.Formats(), store.KindSQLite, store.KindPostgres)
}

func newFetchCmd() *cobra.Command {
	var (
		opts   fetchOptions
		apiKey string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch, enrich and export audit logs",
		Long: `Fetch every page of audit logs for an organization or group, resolve
the users and organizations they reference, apply local filters and write
the result in the chosen format.

Flags default to the environment and the .env store (SNYK_API_KEY,
SNYK_ORG_ID, SNYK_GROUP_ID, FROM_DATE, TO_DATE). Without dates the last
7 days are fetched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fillFetchDefaults(cmd, &opts)
			if apiKey == "" {
				if err := cfg.RequireAPIKey(); err != nil {
					return err
				}
			}
			reports := newReporter(newAPIClient(apiKey))
			return runFetch(cmd.Context(), reports, &opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&apiKey, "api-key", "", "API key (env: SNYK_API_KEY)")
	f.StringVar(&opts.OrgID, "org-id", "", "Organization ID (env: SNYK_ORG_ID)")
	f.StringVar(&opts.GroupID, "group-id", "", "Group ID, used when no org ID is set (env: SNYK_GROUP_ID)")
	f.StringVar(&opts.FromDate, "from-date", "", "Start timestamp YYYY-MM-DDTHH:MM:SSZ (env: FROM_DATE)")
	f.StringVar(&opts.ToDate, "to-date", "", "End timestamp YYYY-MM-DDTHH:MM:SSZ (env: TO_DATE)")
	f.IntVar(&opts.PageSize, "page-size", 0, "Entries per page (env: PAGE_SIZE)")
	f.IntVar(&opts.MaxPages, "max-pages", 0, "Maximum pages to fetch (env: MAX_PAGES)")
	f.StringVar(&opts.Event, "event", "", "Upstream event filter")
	f.StringVar(&opts.User, "user", "", "Upstream user ID filter")
	f.StringVarP(&opts.Format, "output-format", "f", export.FormatTable,
		"Output format: "+strings.Join(outputFormats(), "|"))
	f.StringVarP(&opts.OutputFile, "output-file", "o", "",
		"Output file, database path or URL (default: timestamped file, - for stdout)")

	f.StringVar(&opts.EventPrefix, "filter-event", "", "Keep events under a taxonomy prefix, e.g. org.project")
	f.StringVar(&opts.Contains, "contains", "", "Keep events whose name contains this text")
	f.StringSliceVar(&opts.Exclude, "exclude", nil, "Drop events under these taxonomy prefixes")
	f.StringSliceVar(&opts.FilterOrgs, "filter-org", nil, "Keep entries from these org IDs")
	f.StringSliceVar(&opts.FilterGroup, "filter-group", nil, "Keep entries from these group IDs")
	f.StringVar(&opts.FilterUser, "filter-user", "", "Keep entries by this user ID")

	return cmd
}

// fillFetchDefaults applies configuration to flags the user did not set.
func fillFetchDefaults(cmd *cobra.Command, o *fetchOptions) {
	flags := cmd.Flags()
	str := func(name string, dst *string, v string) {
		if !flags.Changed(name) {
			*dst = v
		}
	}
	num := func(name string, dst *int, v int) {
		if !flags.Changed(name) {
			*dst = v
		}
	}
	str("org-id", &o.OrgID, cfg.OrgID)
	str("group-id", &o.GroupID, cfg.GroupID)
	str("from-date", &o.FromDate, cfg.FromDate)
	str("to-date", &o.ToDate, cfg.ToDate)
	num("page-size", &o.PageSize, cfg.PageSize)
	num("max-pages", &o.MaxPages, cfg.MaxPages)
	o.DatabaseURL = cfg.DatabaseURL.Value()
}

// newReporter wires the client's services into a Reporter.
func newReporter(c *client.Client) *service.Reporter {
	enricher := service.NewEnricher(c.Users, c.Orgs, log, cfg.LookupConcurrency)
	return service.NewReporter(c.Audit, enricher, log, service.WithRetries(cfg.FetchRetries, 0))
}

// runFetch builds the report described by o and writes it out. Warnings
// go to stderr so that stdout stays machine-readable.
func runFetch(ctx context.Context, reports reportBuilder, o *fetchOptions, stdout, stderr io.Writer) error {
	if !isOutputFormat(o.Format) {
		return fmt.Errorf("%q: %w (want %s)", o.Format, export.ErrUnknownFormat, strings.Join(outputFormats(), "|"))
	}

	scopeType, scopeID, ignoredGroup, err := service.ResolveScope(o.OrgID, o.GroupID)
	if err != nil {
		return err
	}
	if ignoredGroup {
		fmt.Fprintf(stderr, "Warning: both org ID and group ID set, using org %s\n", o.OrgID)
	}
	if client.IsPartialRange(o.FromDate, o.ToDate) {
		log.Debug("only one of from/to date given, using the default 7-day window")
	}

	spec := client.QuerySpec{
		ScopeType: scopeType,
		ScopeID:   scopeID,
		FromDate:  o.FromDate,
		ToDate:    o.ToDate,
		Event:     o.Event,
		UserID:    o.User,
		PageSize:  o.PageSize,
		MaxPages:  o.MaxPages,
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if _, _, err := client.ResolveDateRange(spec.FromDate, spec.ToDate); err != nil {
		return err
	}

	rep, err := reports.Build(ctx, spec)
	if err != nil {
		return err
	}
	if f := o.filter(); !f.IsZero() {
		rep = rep.WithEntries(analysis.Apply(rep.Entries, f))
	}

	if rep.Truncated {
		fmt.Fprintf(stderr, "Warning: results truncated after %d pages; narrow the date range or raise --max-pages\n", rep.Pages)
	}
	if n := len(rep.Failures); n > 0 {
		fmt.Fprintf(stderr, "Warning: %d user/org lookups failed, names shown as %s\n", n, export.NotAvailable)
	}

	switch o.Format {
	case store.KindSQLite, store.KindPostgres:
		return saveReport(ctx, rep, o, stderr)
	default:
		return writeReport(rep, o, stdout, stderr)
	}
}

func isOutputFormat(format string) bool {
	return export.Supported(format) || format == store.KindSQLite || format == store.KindPostgres
}

// writeReport renders rep to stdout (table, or output file "-") or to a file.
func writeReport(rep *service.Report, o *fetchOptions, stdout, stderr io.Writer) error {
	path := o.OutputFile
	if path == "" {
		path = export.DefaultFilename(o.Format, rep.GeneratedAt)
	}
	if path == "" || path == "-" {
		return export.Write(stdout, o.Format, rep)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := export.Write(f, o.Format, rep); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	fmt.Fprintf(stderr, "Exported %d entries to %s\n", len(rep.Entries), path)
	return nil
}

// saveReport stores rep in a SQLite file or a PostgreSQL database.
func saveReport(ctx context.Context, rep *service.Report, o *fetchOptions, stderr io.Writer) error {
	target := o.OutputFile
	switch {
	case target != "":
	case o.Format == store.KindSQLite:
		target = "audit_logs_" + rep.GeneratedAt.Format("2006-01-02T15-04-05") + ".db"
	default:
		target = o.DatabaseURL
	}
	if target == "" {
		return fmt.Errorf("postgres output needs --output-file or DATABASE_URL")
	}

	sink, err := store.Open(ctx, o.Format, target, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	n, err := sink.SaveReport(ctx, rep)
	if err != nil {
		return err
	}

	dest := target
	if o.Format == store.KindPostgres {
		dest = "postgres"
	}
	fmt.Fprintf(stderr, "Stored %d entries in %s (report %s)\n", n, dest, rep.ID)
	return nil
}
