package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/api"
	"github.com/persistorai/auditscope/internal/config"
	"github.com/persistorai/auditscope/internal/dbpool"
	"github.com/persistorai/auditscope/internal/service"
	"github.com/persistorai/auditscope/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var persist bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit-log HTTP API",
		Long: `Serve the audit-log API on LISTEN_HOST:PORT (default 127.0.0.1:3001).

When DATABASE_URL is set the health endpoint reports database
reachability; with --persist every built report is also stored there.
Org, group and date defaults saved through /api/config apply to the next
request. A changed API key takes effect after a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, persist)
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "Store every built report in DATABASE_URL")

	return cmd
}

func runServe(ctx context.Context, persist bool) error {
	log.SetFormatter(&logrus.JSONFormatter{})
	if log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if !cfg.APIKey.IsSet() {
		log.Warn("no API key configured; save one through /api/config and restart")
	}

	c := newAPIClient("")
	var reports api.ReportBuilder = newReporter(c)

	deps := &api.RouterDeps{
		Log:         log,
		Orgs:        c.Orgs,
		Config:      config.NewEnvStore(cfg.ConfigFile),
		Defaults:    loadDefaults,
		CORSOrigins: cfg.CORSOrigins,
		Version:     config.Version,
		Upstream:    c.BaseURL(),
	}

	switch {
	case cfg.DatabaseURL.IsSet():
		pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		pg, err := store.NewPostgresStore(ctx, pool, log)
		if err != nil {
			pool.Close()
			return err
		}
		defer pg.Close()
		deps.DB = pg
		if persist {
			reports = &persistingReporter{next: reports, sink: pg}
		}
	case persist:
		return errors.New("--persist needs DATABASE_URL")
	}
	deps.Reports = reports

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(ctx, deps),
		ReadHeaderTimeout: 10 * time.Second,
		// Report requests walk every upstream page before responding.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"upstream": c.BaseURL(),
			"version":  config.Version,
		}).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadDefaults re-reads configuration so that values saved through the
// config endpoint apply to the next request. On error the values loaded
// at startup are used.
func loadDefaults() api.QueryDefaults {
	c, err := config.Load()
	if err != nil {
		log.WithError(err).Warn("reloading configuration failed, using startup values")
		c = cfg
	}
	return api.QueryDefaults{
		OrgID:    c.OrgID,
		GroupID:  c.GroupID,
		FromDate: c.FromDate,
		ToDate:   c.ToDate,
		PageSize: c.PageSize,
		MaxPages: c.MaxPages,
	}
}

// persistingReporter stores every report it builds. A failed save is logged
// and does not fail the request.
type persistingReporter struct {
	next api.ReportBuilder
	sink store.Sink
}

func (p *persistingReporter) Build(ctx context.Context, spec client.QuerySpec) (*service.Report, error) {
	rep, err := p.next.Build(ctx, spec)
	if err != nil {
		return nil, err
	}
	if n, err := p.sink.SaveReport(ctx, rep); err != nil {
		log.WithError(err).WithField("report_id", rep.ID).Error("storing report failed")
	} else {
		log.WithFields(logrus.Fields{"report_id": rep.ID, "entries": n}).Debug("report stored")
	}
	return rep, nil
}
