package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/export"
)

// userLookup is the part of client.UserService that user needs.
type userLookup interface {
	Get(ctx context.Context, orgID, userID string) client.LookupResult
}

func newUserCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "user <org-id> <user-id>",
		Short: "Look up a user within an organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireAPIKey(); err != nil {
				return err
			}
			c := newAPIClient("")
			return runUser(cmd.Context(), c.Users, args[0], args[1], format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&format, "format", fmtTable, "Output format: table|json|yaml")

	return cmd
}

func runUser(ctx context.Context, users userLookup, orgID, userID, format string, w io.Writer) error {
	res := users.Get(ctx, orgID, userID)
	if !res.OK() {
		return fmt.Errorf("looking up user %s: %w", userID, res.Err)
	}
	u := res.Entity

	return output(w, format, u, func() {
		formatTable(w, []string{"FIELD", "VALUE"}, [][]string{
			{"id", u.ID},
			{"name", u.DisplayName},
			{"email", export.OrNA(u.Email)},
			{"username", export.OrNA(u.Username)},
		})
	})
}
