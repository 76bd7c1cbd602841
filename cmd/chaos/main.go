// cmd/chaos/main.go
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"librarydesk/internal/chaos"
	"librarydesk/internal/clients"
	"librarydesk/internal/config"
	"librarydesk/internal/store"
)

var errHypothesisRejected = errors.New("one or more hypotheses did not hold")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile     string
		baseURL     string
		apiKey      string
		concurrency int
		duration    time.Duration
		interval    time.Duration
	)

	cmd := &cobra.Command{
		Use:          "chaos",
		Short:        "Run the circulation game day against a live librarydesk",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if apiKey == "" {
				apiKey = cfg.APIKey
			}
			if apiKey == "" {
				return config.ErrMissingAPIKey
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, store.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			engine := chaos.NewEngine(logger, chaos.WithSampleInterval(interval))
			chaos.NewLibrary(clients.New(baseURL, apiKey), db, concurrency, duration).RegisterAll(engine)

			held, err := engine.ExecuteGameDay(ctx, chaos.GameDay{
				Name:      "Circulation game day",
				Date:      time.Now(),
				Scenarios: engine.Experiments(),
			})
			if err != nil {
				return err
			}
			if !held {
				return errHypothesisRejected
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all hypotheses held")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&envFile, "env-file", ".env", "dotenv file applied before reading the environment")
	f.StringVar(&baseURL, "base-url", "http://localhost:5000", "librarydesk API base URL")
	f.StringVar(&apiKey, "api-key", "", "x-api-key value (defaults to API_KEY)")
	f.IntVar(&concurrency, "concurrency", 16, "parallel clients per experiment")
	f.DurationVar(&duration, "duration", 10*time.Second, "fault window of each experiment")
	f.DurationVar(&interval, "sample-interval", time.Second, "how often steady-state metrics are sampled")
	return cmd
}
