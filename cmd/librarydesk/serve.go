// cmd/librarydesk/serve.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"librarydesk/internal/activity"
	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/httpapi"
	"librarydesk/internal/membership"
	"librarydesk/internal/telemetry"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port        string
		metricsAddr string
		migrate     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, "librarydesk", version)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := shutdownTracing(flushCtx); err != nil {
					logger.Warn("tracer shutdown failed", "error", err)
				}
			}()

			db, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if migrate {
				if err := db.Migrate(ctx); err != nil {
					return err
				}
			}

			metrics := telemetry.NewHTTPMetrics()
			meterProvider, err := telemetry.SetupMetrics(metrics, "librarydesk", version)
			if err != nil {
				return err
			}
			defer func() {
				if err := meterProvider.Shutdown(context.Background()); err != nil {
					logger.Warn("meter provider shutdown failed", "error", err)
				}
			}()

			inventory, err := catalog.NewInventory(meterProvider)
			if err != nil {
				return err
			}
			recorder := activity.NewLog(db, logger)

			router := httpapi.NewRouter(httpapi.Services{
				Catalog:     catalog.NewService(db, inventory, recorder),
				Membership:  membership.NewService(db, recorder),
				Circulation: circulation.NewService(db, inventory, recorder),
				Activity:    recorder,
			}, httpapi.Options{
				APIKey:          cfg.APIKey,
				AllowedOrigins:  cfg.AllowedOrigins,
				RateLimitWindow: cfg.RateLimitWindow,
				RateLimitMax:    cfg.RateLimitMax,
				Logger:          logger,
				Metrics:         metrics,
			})

			logger.Info("starting librarydesk",
				"version", version,
				"driver", db.Driver(),
				"port", cfg.Port,
				"metrics_addr", cfg.MetricsAddr,
			)
			srv := httpapi.NewServer(cfg.Addr(), router, cfg.MetricsAddr, metrics, db, cfg.ShutdownTimeout, logger)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "API port (overrides PORT)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "admin listener for /metrics and /healthz, empty disables (overrides METRICS_ADDR)")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply schema migrations before serving")
	return cmd
}
