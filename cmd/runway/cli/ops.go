package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/runway/internal/app"
	"github.com/odyssey-erp/runway/internal/platform/db"
	"github.com/odyssey-erp/runway/jobs"
	"github.com/odyssey-erp/runway/migrations"
)

type migrateResult struct {
	Applied []string `json:"applied"`
}

func newMigrateCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres schema migrations",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			if c.Pool == nil {
				return fmt.Errorf("migrate: STORE_DRIVER=%s has no schema", c.Config.StoreDriver)
			}
			applied, err := db.Migrate(cmd.Context(), c.Pool, migrations.FS)
			if err != nil {
				return err
			}
			if applied == nil {
				applied = []string{}
			}
			return s.render(cmd, migrateResult{Applied: applied}, func(w io.Writer) {
				if len(applied) == 0 {
					_, _ = fmt.Fprintln(w, "Schema is up to date.")
					return
				}
				for _, name := range applied {
					_, _ = fmt.Fprintf(w, "applied %s\n", name)
				}
			})
		}),
	}
}

func newOpsCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Operator endpoints",
	}
	cmd.AddCommand(newOpsServeCommand(s))
	return cmd
}

func newOpsServeCommand(s *session) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics, integrity and queue endpoints",
		Args:  cobra.NoArgs,
		RunE: s.withContainer(func(cmd *cobra.Command, c *app.Container, _ []string) error {
			if addr == "" {
				addr = c.Config.OpsAddr
			}
			var inspector jobs.QueueInspector
			if c.Redis != nil {
				in := asynq.NewInspector(asynq.RedisClientOpt{Addr: c.Config.RedisAddr})
				defer func() {
					if err := in.Close(); err != nil {
						c.Logger.Warn("inspector close", slog.Any("error", err))
					}
				}()
				inspector = in
			}
			router := app.NewRouter(app.RouterParams{
				Logger:     c.Logger,
				Config:     c.Config,
				Integrity:  c.Reports,
				Observer:   c.Metrics.Ledger(),
				JobHandler: jobs.NewHandler(inspector, c.Logger),
				Metrics:    c.Metrics,
				Health:     c.HealthChecks(),
			})
			return serve(cmd.Context(), c.Logger, &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  c.Config.OpsReadTimeout,
				WriteTimeout: c.Config.OpsWriteTimeout,
			})
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default OPS_ADDR)")
	return cmd
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, logger *slog.Logger, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting ops server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down ops server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
