package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueLedger carries deferred postings so they are not starved by reporting work.
	QueueLedger = "ledger"

	// TaskLedgerIntegrity runs the trial balance, equation and reconciliation checks.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskAnalyticsWarmup refills the month bucket cache.
	TaskAnalyticsWarmup = "analytics:warmup"
	// TaskLedgerPost posts one stored source transaction.
	TaskLedgerPost = "ledger:post"
)

// LedgerIntegrityPayload scopes an integrity run. A nil company checks all of them.
type LedgerIntegrityPayload struct {
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
	AsOf      string     `json:"as_of,omitempty"`
	Strict    bool       `json:"strict,omitempty"`
}

// NewLedgerIntegrityTask constructs the integrity task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// AnalyticsWarmupPayload scopes a warmup. A nil company warms all of them.
type AnalyticsWarmupPayload struct {
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
}

// NewAnalyticsWarmupTask constructs the warmup task.
func NewAnalyticsWarmupTask(payload AnalyticsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data), nil
}

// LedgerPostPayload identifies the stored transaction to post.
type LedgerPostPayload struct {
	CompanyID     uuid.UUID `json:"company_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
}

// NewLedgerPostTask constructs a posting task. The task id is the transaction
// id so asynq drops duplicate enqueues while the first is retained.
func NewLedgerPostTask(payload LedgerPostPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerPost, data,
		asynq.TaskID(payload.TransactionID.String()),
		asynq.Queue(QueueLedger),
		asynq.MaxRetry(8),
		asynq.Retention(24*time.Hour),
	), nil
}
