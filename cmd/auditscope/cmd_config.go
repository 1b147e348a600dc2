package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/auditscope/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update the stored configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

// configView is the effective configuration with secrets redacted.
type configView struct {
	File              string   `json:"config_file" yaml:"config_file"`
	APIKey            string   `json:"api_key" yaml:"api_key"`
	OrgID             string   `json:"org_id" yaml:"org_id"`
	GroupID           string   `json:"group_id" yaml:"group_id"`
	FromDate          string   `json:"from_date" yaml:"from_date"`
	ToDate            string   `json:"to_date" yaml:"to_date"`
	BaseURL           string   `json:"base_url" yaml:"base_url"`
	APIVersion        string   `json:"api_version" yaml:"api_version"`
	PageSize          int      `json:"page_size" yaml:"page_size"`
	MaxPages          int      `json:"max_pages" yaml:"max_pages"`
	LookupConcurrency int      `json:"lookup_concurrency" yaml:"lookup_concurrency"`
	HTTPTimeout       string   `json:"http_timeout" yaml:"http_timeout"`
	FetchRetries      int      `json:"fetch_retries" yaml:"fetch_retries"`
	Listen            string   `json:"listen" yaml:"listen"`
	CORSOrigins       []string `json:"cors_origins" yaml:"cors_origins"`
	Database          string   `json:"database" yaml:"database"`
}

func newConfigView(c *config.Config) configView {
	secret := func(s config.Secret) string {
		if s.IsSet() {
			return s.String()
		}
		return ""
	}
	return configView{
		File:              c.ConfigFile,
		APIKey:            secret(c.APIKey),
		OrgID:             c.OrgID,
		GroupID:           c.GroupID,
		FromDate:          c.FromDate,
		ToDate:            c.ToDate,
		BaseURL:           c.BaseURL,
		APIVersion:        c.APIVersion,
		PageSize:          c.PageSize,
		MaxPages:          c.MaxPages,
		LookupConcurrency: c.LookupConcurrency,
		HTTPTimeout:       c.HTTPTimeout.String(),
		FetchRetries:      c.FetchRetries,
		Listen:            c.Addr(),
		CORSOrigins:       c.CORSOrigins,
		Database:          secret(c.DatabaseURL),
	}
}

func newConfigShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.OutOrStdout(), cfg, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", fmtYAML, "Output format: yaml|json")

	return cmd
}

func showConfig(w io.Writer, c *config.Config, format string) error {
	if format == fmtTable {
		return fmt.Errorf("unknown format %q (want yaml|json)", format)
	}
	return output(w, format, newConfigView(c), nil)
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Update keys in the .env store",
		Long: `Update keys in the .env store (CONFIG_FILE, default .env).

Accepted keys: ` + strings.Join(config.StoreKeys, ", ") + `.
An empty value removes the key. Dates use YYYY-MM-DDTHH:MM:SSZ.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := parseAssignments(args)
			if err != nil {
				return err
			}
			st := config.NewEnvStore(cfg.ConfigFile)
			if err := st.Set(updates); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d key(s) to %s\n", len(updates), st.Path())
			return nil
		},
	}
}

// parseAssignments turns KEY=VALUE arguments into a map.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q, want KEY=VALUE", a)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
