package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/runway/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/runway/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CompanyLister enumerates the companies that own a chart of accounts.
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]uuid.UUID, error)
}

// IntegrityChecker runs the ledger verification paths for one company.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, companyID uuid.UUID, asOf time.Time, opts ...reports.ReadOption) (reports.IntegrityReport, error)
}

// IntegrityObserver receives the finding count of every checked company.
type IntegrityObserver interface {
	ObserveIntegrity(companyID string, findings int)
}

// ErrIntegrityFindings is returned when at least one company failed a check.
var ErrIntegrityFindings = errors.New("ledger integrity findings")

// LedgerIntegrityJob verifies every company ledger in parallel.
type LedgerIntegrityJob struct {
	Companies   CompanyLister
	Reports     IntegrityChecker
	Observer    IntegrityObserver
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Parallelism int
	clock       func() time.Time
}

// NewLedgerIntegrityJob wires dependencies for the integrity handler.
func NewLedgerIntegrityJob(companies CompanyLister, checker IntegrityChecker, observer IntegrityObserver, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Companies:   companies,
		Reports:     checker,
		Observer:    observer,
		Logger:      logger,
		Metrics:     metrics,
		Parallelism: 4,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes ledger integrity tasks. Findings fail the task so they
// surface in the queue; retrying does not change the ledger, so it is skipped.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil || j.Companies == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("ledger integrity: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := j.now()
	if payload.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", payload.AsOf)
		if err != nil {
			return fmt.Errorf("ledger integrity: as_of %q: %v: %w", payload.AsOf, err, asynq.SkipRetry)
		}
		asOf = parsed
	}

	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	companies, err := j.companies(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("load companies", slog.Any("error", err))
		return resultErr
	}

	unhealthy, err := j.Run(ctx, companies, asOf, payload.Strict)
	if err != nil {
		resultErr = err
		return resultErr
	}
	logger.Info("completed ledger integrity", slog.Int("companies", len(companies)), slog.Int("unhealthy", unhealthy))
	if unhealthy > 0 {
		resultErr = fmt.Errorf("%d of %d companies: %w: %w", unhealthy, len(companies), ErrIntegrityFindings, asynq.SkipRetry)
	}
	return resultErr
}

// Run checks the given companies and returns how many reported findings.
// A storage error aborts the remaining checks.
func (j *LedgerIntegrityJob) Run(ctx context.Context, companies []uuid.UUID, asOf time.Time, strict bool) (int, error) {
	var opts []reports.ReadOption
	if strict {
		opts = append(opts, reports.ReadSerializable())
	}
	limit := j.Parallelism
	if limit <= 0 {
		limit = 1
	}
	logger := j.logger()

	var unhealthy atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, companyID := range companies {
		g.Go(func() error {
			report, err := j.Reports.CheckIntegrity(gctx, companyID, asOf, opts...)
			if err != nil {
				j.metrics().AddItems(TaskLedgerIntegrity, "error", 1)
				return fmt.Errorf("company %s: %w", companyID, err)
			}
			if j.Observer != nil {
				j.Observer.ObserveIntegrity(companyID.String(), len(report.Findings))
			}
			if !report.Healthy() {
				unhealthy.Add(1)
				j.metrics().AddItems(TaskLedgerIntegrity, "unhealthy", 1)
				logger.Error("ledger integrity findings",
					slog.String("company_id", companyID.String()),
					slog.Any("findings", report.Findings))
				return nil
			}
			j.metrics().AddItems(TaskLedgerIntegrity, "healthy", 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("ledger integrity aborted", slog.Any("error", err))
		return int(unhealthy.Load()), err
	}
	return int(unhealthy.Load()), nil
}

func (j *LedgerIntegrityJob) companies(ctx context.Context, payload LedgerIntegrityPayload) ([]uuid.UUID, error) {
	if payload.CompanyID != nil {
		return []uuid.UUID{*payload.CompanyID}, nil
	}
	return j.Companies.ListCompanies(ctx)
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
