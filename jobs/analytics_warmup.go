package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/runway/internal/analytics"
	jobmetrics "github.com/odyssey-erp/runway/internal/jobs"
)

// BucketWarmer loads month buckets through the analytics cache.
type BucketWarmer interface {
	MonthBuckets(ctx context.Context, companyID uuid.UUID) ([]analytics.MonthBurn, error)
}

// AnalyticsWarmupJob pre-populates the analytics cache so dashboards read warm.
type AnalyticsWarmupJob struct {
	Analytics BucketWarmer
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Timeout   time.Duration
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(warmer BucketWarmer, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Analytics: warmer,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		Timeout:   20 * time.Second,
	}
}

// Handle processes analytics warmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload AnalyticsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("analytics warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	companies, err := j.scopes(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("load warmup scopes", slog.Any("error", err))
		return resultErr
	}
	if len(companies) == 0 {
		logger.Info("no companies discovered for warmup")
		return resultErr
	}

	warmed := 0
	for _, companyID := range companies {
		if err := j.warm(ctx, companyID); err != nil {
			resultErr = err
			j.metrics().AddItems(TaskAnalyticsWarmup, "error", 1)
			logger.Error("warm company", slog.String("company_id", companyID.String()), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}
	j.metrics().AddItems(TaskAnalyticsWarmup, "warmed", warmed)
	logger.Info("completed analytics warmup", slog.Int("companies", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *AnalyticsWarmupJob) warm(ctx context.Context, companyID uuid.UUID) error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	scopeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := j.Analytics.MonthBuckets(scopeCtx, companyID)
	return err
}

func (j *AnalyticsWarmupJob) scopes(ctx context.Context, payload AnalyticsWarmupPayload) ([]uuid.UUID, error) {
	if payload.CompanyID != nil {
		return []uuid.UUID{*payload.CompanyID}, nil
	}
	if j.Companies == nil {
		return nil, errors.New("analytics warmup: company lister not configured")
	}
	return j.Companies.ListCompanies(ctx)
}

func (j *AnalyticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *AnalyticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
