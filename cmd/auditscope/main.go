// Command auditscope fetches security-platform audit logs, resolves the
// users and organizations they reference, and exports or serves the result.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/config"
	"github.com/persistorai/auditscope/internal/metrics"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	cfg          *config.Config
	log          = logrus.New()
	flagLogLevel string
	flagDebug    bool
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("auditscope version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("auditscope version %s", config.Version)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "auditscope",
		Short:   "auditscope: audit-log retrieval, enrichment and export",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug|info|warn|error (env: LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newOrgsCmd())
	rootCmd.AddCommand(newUserCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newImportCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and configures the logger. Flags override the
// environment and the .env store.
func setup() error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagDebug {
		level = "debug"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)

	return nil
}

// newAPIClient builds an upstream client from configuration. apiKey
// overrides the configured key when non-empty.
func newAPIClient(apiKey string) *client.Client {
	if apiKey == "" {
		apiKey = cfg.APIKey.Value()
	}
	return client.New(cfg.BaseURL,
		client.WithAPIKey(apiKey),
		client.WithAuthScheme(cfg.AuthScheme),
		client.WithAPIVersion(cfg.APIVersion),
		client.WithTimeout(cfg.HTTPTimeout),
		client.WithLogger(log),
		client.WithObserver(metrics.ClientObserver{}),
	)
}
