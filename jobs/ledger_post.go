package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/runway/internal/accounting/journals"
	jobmetrics "github.com/odyssey-erp/runway/internal/jobs"
	"github.com/odyssey-erp/runway/internal/shared"
	"github.com/odyssey-erp/runway/internal/transactions"
)

// TransactionSource loads stored source transactions.
type TransactionSource interface {
	Get(ctx context.Context, companyID, id uuid.UUID) (transactions.Transaction, error)
}

// TransactionPoster books a transaction into the ledger.
type TransactionPoster interface {
	PostTransaction(ctx context.Context, input journals.PostingInput) (journals.PostingResult, error)
}

// LedgerPostJob posts transactions whose synchronous posting was deferred.
type LedgerPostJob struct {
	Transactions TransactionSource
	Poster       TransactionPoster
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
}

// NewLedgerPostJob wires dependencies for the posting handler.
func NewLedgerPostJob(source TransactionSource, poster TransactionPoster, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerPostJob {
	return &LedgerPostJob{Transactions: source, Poster: poster, Logger: logger, Metrics: metrics}
}

// Handle posts one transaction. A transaction that is already posted counts
// as done. Input the ledger rejects is never retried; storage errors are.
func (j *LedgerPostJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Transactions == nil || j.Poster == nil {
		return errors.New("ledger post: handler not configured")
	}
	var payload LedgerPostPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("ledger post: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskLedgerPost)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("company_id", payload.CompanyID.String()),
		slog.String("transaction_id", payload.TransactionID.String()))

	tx, err := j.Transactions.Get(ctx, payload.CompanyID, payload.TransactionID)
	if err != nil {
		resultErr = permanent(err)
		logger.Error("load transaction", slog.Any("error", err))
		return resultErr
	}
	result, err := j.Poster.PostTransaction(ctx, journals.InputFromTransaction(tx))
	switch {
	case errors.Is(err, shared.ErrAlreadyPosted):
		logger.Info("transaction already posted")
		return nil
	case err != nil:
		resultErr = permanent(err)
		logger.Error("post transaction", slog.Any("error", err))
		return resultErr
	}
	for _, w := range result.Warnings {
		logger.Warn("posted to fallback account", slog.String("category", w.Category), slog.String("fallback_code", w.FallbackCode))
	}
	logger.Info("transaction posted", slog.Int("entries", len(result.Entries)))
	return nil
}

// permanent marks errors that a retry cannot fix.
func permanent(err error) error {
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrUnbalanced) || errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

func (j *LedgerPostJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerPost))
	}
	return slog.Default().With(slog.String("job", TaskLedgerPost))
}

func (j *LedgerPostJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
