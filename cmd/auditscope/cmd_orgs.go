package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/export"
)

// orgLister is the part of client.OrgService that orgs needs.
type orgLister interface {
	List(ctx context.Context) client.ListResult
}

func newOrgsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "orgs",
		Short: "List organizations visible to the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireAPIKey(); err != nil {
				return err
			}
			c := newAPIClient("")
			return runOrgs(cmd.Context(), c.Orgs, format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&format, "format", fmtTable, "Output format: table|json|yaml")

	return cmd
}

func runOrgs(ctx context.Context, orgs orgLister, format string, w io.Writer) error {
	res := orgs.List(ctx)
	if !res.OK() {
		return fmt.Errorf("listing organizations: %w", res.Err)
	}

	return output(w, format, res.Orgs, func() {
		rows := make([][]string, len(res.Orgs))
		for i, o := range res.Orgs {
			rows[i] = []string{o.ID, o.DisplayName, export.OrNA(o.Slug), export.OrNA(o.GroupID)}
		}
		formatTable(w, []string{"ID", "NAME", "SLUG", "GROUP ID"}, rows)
	})
}
