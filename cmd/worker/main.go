package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/runway/internal/app"
	jobmetrics "github.com/odyssey-erp/runway/internal/jobs"
	"github.com/odyssey-erp/runway/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("init container", slog.Any("error", err))
		os.Exit(1)
	}
	defer container.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	metrics := jobmetrics.NewMetrics(container.Metrics.Registerer())

	integrityJob := jobs.NewLedgerIntegrityJob(container.Accounts, container.Reports, container.Metrics.Ledger(), logger, metrics)
	warmupJob := jobs.NewAnalyticsWarmupJob(container.Analytics, container.Accounts, logger, metrics)
	postJob := jobs.NewLedgerPostJob(container.Transactions, container.Poster, logger, metrics)

	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewAnalyticsWarmupTask(jobs.AnalyticsWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskAnalyticsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskLedgerPost, Handler: postJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.IntegrityCron, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	// Postings bump the company's cache version; refill it shortly after the burst.
	if cache := container.Analytics.Cache(); cache != nil {
		err := cache.Subscribe(ctx, logger, func(ctx context.Context, companyID uuid.UUID) {
			_, err := client.EnqueueAnalyticsWarmup(ctx, jobs.AnalyticsWarmupPayload{CompanyID: &companyID},
				asynq.ProcessIn(30*time.Second), asynq.Unique(time.Minute))
			if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
				logger.Warn("enqueue warmup", slog.String("company_id", companyID.String()), slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Warn("subscribe cache bumps", slog.Any("error", err))
		}
	}

	if cfg.WorkerOpsAddr != "" {
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		server := &http.Server{
			Addr: cfg.WorkerOpsAddr,
			Handler: app.NewRouter(app.RouterParams{
				Logger:     logger,
				Config:     cfg,
				Integrity:  container.Reports,
				Observer:   container.Metrics.Ledger(),
				JobHandler: jobs.NewHandler(inspector, logger),
				Metrics:    container.Metrics,
				Health:     container.HealthChecks(),
			}),
			ReadTimeout:  cfg.OpsReadTimeout,
			WriteTimeout: cfg.OpsWriteTimeout,
		}
		go func() {
			logger.Info("starting worker ops server", slog.String("addr", cfg.WorkerOpsAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker ops server", slog.Any("error", err))
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown", slog.Any("error", err))
			}
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
