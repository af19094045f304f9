package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/spf13/cobra"

	"github.com/findback/matcher/internal/config"
	"github.com/findback/matcher/internal/ingest"
	"github.com/findback/matcher/internal/models"
	"github.com/findback/matcher/internal/observability"
	"github.com/findback/matcher/internal/service"
	"github.com/findback/matcher/internal/workers"
	"github.com/findback/matcher/migrations"
	"github.com/findback/matcher/pkg/database"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "matcher",
		Short:        "Lost-and-found match-scoring engine",
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCommand(),
		newProcessCommand(),
		newRegenerateCommand(),
		newEnqueueCommand(),
		newImportCommand(),
		newWorkerCommand(),
		newMatchesCommand(),
		newResolveCommand(),
	)

	return root
}

func newMigrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the listings/matches schema and River's job tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			slog.SetDefault(observability.NewLogger(cfg.SlogLevel()))

			if down {
				return migrations.Down(cfg.DatabaseURL)
			}

			if err := migrations.Up(cfg.DatabaseURL); err != nil {
				return err
			}

			// No vector type registration here: the extension may have just been created.
			db, err := database.NewPostgresPool(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer db.Close()

			migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
			if err != nil {
				return fmt.Errorf("river migrator: %w", err)
			}

			res, err := migrator.Migrate(cmd.Context(), rivermigrate.DirectionUp, nil)
			if err != nil {
				return fmt.Errorf("river migrations: %w", err)
			}

			slog.Info("river migrations applied", "versions", len(res.Versions))

			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back the listings/matches schema instead")

	return cmd
}

func newProcessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "process <listing-id>",
		Short: "Match one listing against the active pool now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseListingID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.matching.ProcessListing(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printJSON(cmd, summary)
		},
	}
}

func newRegenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate",
		Short: "Delete every match and rebuild them from the active pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.matching.RegenerateAll(cmd.Context())
			if err != nil {
				return err
			}

			return printJSON(cmd, summary)
		},
	}
}

func newEnqueueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <listing-id>",
		Short: "Enqueue a background matching job for a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseListingID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			// Insert-only client: no queues or workers.
			client, err := river.NewClient(riverpgxv5.New(a.db), &river.Config{})
			if err != nil {
				return fmt.Errorf("river client: %w", err)
			}

			enqueuer := service.NewMatchingEnqueuer(client, service.MatchingQueueName, a.cfg.MatchingMaxAttempts, a.matchingMetrics())

			duplicate, err := enqueuer.Enqueue(cmd.Context(), id)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued listing %s (duplicate: %t)\n", id, duplicate)

			return err
		},
	}
}

func newImportCommand() *cobra.Command {
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create listings from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			rows, err := ingest.ReadListings(f)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			var enqueuer service.Enqueuer

			if enqueue {
				client, err := river.NewClient(riverpgxv5.New(a.db), &river.Config{})
				if err != nil {
					return fmt.Errorf("river client: %w", err)
				}

				enqueuer = service.NewMatchingEnqueuer(client, service.MatchingQueueName, a.cfg.MatchingMaxAttempts, a.matchingMetrics())
			}

			importer := service.NewListingImporter(a.listings, enqueuer, a.cfg.EmbeddingDimension)

			summary, err := importer.Import(cmd.Context(), rows)
			if err != nil {
				return err
			}

			return printJSON(cmd, summary)
		},
	}

	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "enqueue a matching job for every imported listing")

	return cmd
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the River worker that matches newly created listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			riverWorkers := river.NewWorkers()
			river.AddWorker(riverWorkers, workers.NewListingMatchingWorker(a.matching, a.matchingMetrics()))

			client, err := river.NewClient(riverpgxv5.New(a.db), &river.Config{
				Queues: map[string]river.QueueConfig{
					service.MatchingQueueName: {MaxWorkers: a.cfg.MatchingQueueMaxWorkers},
				},
				Workers:      riverWorkers,
				ErrorHandler: &workers.ErrorHandler{Metrics: a.matchingMetrics()},
				MaxAttempts:  a.cfg.MatchingMaxAttempts,
			})
			if err != nil {
				return fmt.Errorf("river client: %w", err)
			}

			var server *http.Server
			if a.metricsHandler != nil {
				server = startMetricsServer(a.cfg.MetricsAddr, a.metricsHandler)
			}

			if err := client.Start(ctx); err != nil {
				return fmt.Errorf("start river: %w", err)
			}

			slog.Info("matching worker started",
				"queue", service.MatchingQueueName,
				"max_workers", a.cfg.MatchingQueueMaxWorkers,
			)

			<-ctx.Done()

			return stopWorker(client, server)
		},
	}
}

func newMatchesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "matches <listing-id>",
		Short: "List stored matches for a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseListingID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			matches, err := a.matches.ListForListing(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printJSON(cmd, matches)
		},
	}
}

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <listing-id>",
		Short: "Mark a listing resolved so it leaves the matching pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseListingID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			return a.listings.UpdateStatus(cmd.Context(), id, models.ListingStatusResolved)
		},
	}
}

func startMetricsServer(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("serving metrics", "addr", addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return server
}

// stopWorker stops River (waiting for in-flight jobs) and then the metrics server.
func stopWorker(client *river.Client[pgx.Tx], server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("stopping River job queue...")

	var errs []error

	if err := client.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop river: %w", err))
	}

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics server: %w", err))
		}
	}

	return errors.Join(errs...)
}

func parseListingID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid listing id %q: %w", s, err)
	}

	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
