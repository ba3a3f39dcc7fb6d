package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/accounting/journals"
	"github.com/odyssey-erp/runway/internal/accounting/mappings"
	"github.com/odyssey-erp/runway/internal/accounting/reports"
	"github.com/odyssey-erp/runway/internal/analytics"
	jobmetrics "github.com/odyssey-erp/runway/internal/jobs"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/platform/memdb"
	"github.com/odyssey-erp/runway/internal/shared"
	"github.com/odyssey-erp/runway/internal/transactions"
	_ "github.com/odyssey-erp/runway/testing"
)

type env struct {
	store    *memdb.Store
	accounts *accounts.Service
	poster   *journals.Poster
	reports  *reports.Service
	metrics  *jobmetrics.Metrics
}

func newEnv(t *testing.T, companies ...uuid.UUID) *env {
	t.Helper()
	table, err := mappings.Default()
	require.NoError(t, err)
	store := memdb.New()
	e := &env{
		store:    store,
		accounts: accounts.NewService(store.Accounts(), nil),
		poster:   journals.NewPoster(store.Journals(), table, store, nil),
		reports:  reports.NewService(store.Reports(), nil),
		metrics:  jobmetrics.NewMetrics(prometheus.NewRegistry()),
	}
	for _, id := range companies {
		_, err := e.accounts.Initialize(context.Background(), id)
		require.NoError(t, err)
	}
	return e
}

func (e *env) storeTransaction(t *testing.T, companyID uuid.UUID, amount, category string) transactions.Transaction {
	t.Helper()
	tx := transactions.Transaction{
		ID:          uuid.New(),
		CompanyID:   companyID,
		Date:        time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		Amount:      money.MustParse(amount),
		Category:    category,
		Description: "queued",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, e.store.Transactions().Insert(context.Background(), tx))
	return tx
}

func postTask(t *testing.T, companyID, txID uuid.UUID) *asynq.Task {
	t.Helper()
	task, err := NewLedgerPostTask(LedgerPostPayload{CompanyID: companyID, TransactionID: txID})
	require.NoError(t, err)
	return task
}

func TestLedgerPostJob(t *testing.T) {
	companyID := uuid.New()
	e := newEnv(t, companyID)
	job := NewLedgerPostJob(e.store.Transactions(), e.poster, nil, e.metrics)
	tx := e.storeTransaction(t, companyID, "1200.00", "rent")

	require.NoError(t, job.Handle(context.Background(), postTask(t, companyID, tx.ID)))
	entries, err := e.poster.Entries(context.Background(), companyID, tx.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Redelivery of an already posted transaction completes the task.
	require.NoError(t, job.Handle(context.Background(), postTask(t, companyID, tx.ID)))

	// Unknown transactions are never retried.
	err = job.Handle(context.Background(), postTask(t, companyID, uuid.New()))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// Malformed payloads are never retried.
	err = job.Handle(context.Background(), asynq.NewTask(TaskLedgerPost, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type flakyPoster struct{ err error }

func (f flakyPoster) PostTransaction(context.Context, journals.PostingInput) (journals.PostingResult, error) {
	return journals.PostingResult{}, f.err
}

func TestLedgerPostJobRetriesStorageErrors(t *testing.T) {
	companyID := uuid.New()
	e := newEnv(t, companyID)
	tx := e.storeTransaction(t, companyID, "10.00", "rent")

	job := NewLedgerPostJob(e.store.Transactions(), flakyPoster{err: errors.New("connection reset")}, nil, e.metrics)
	err := job.Handle(context.Background(), postTask(t, companyID, tx.ID))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	job = NewLedgerPostJob(e.store.Transactions(), flakyPoster{err: &shared.UnbalancedPostingError{Debit: 1, Credit: 2}}, nil, e.metrics)
	err = job.Handle(context.Background(), postTask(t, companyID, tx.ID))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type integrityRecorder struct {
	mu       sync.Mutex
	findings map[string]int
}

func (r *integrityRecorder) ObserveIntegrity(companyID string, findings int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings[companyID] = findings
}

func TestLedgerIntegrityJobAcrossCompanies(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	e := newEnv(t, a, b)
	for _, id := range []uuid.UUID{a, b} {
		tx := e.storeTransaction(t, id, "500.00", "payroll")
		_, err := e.poster.PostTransaction(context.Background(), journals.InputFromTransaction(tx))
		require.NoError(t, err)
	}
	observer := &integrityRecorder{findings: map[string]int{}}
	job := NewLedgerIntegrityJob(e.accounts, e.reports, observer, nil, e.metrics)

	task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{Strict: true})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, map[string]int{a.String(): 0, b.String(): 0}, observer.findings)
}

type brokenLedger struct{ bad uuid.UUID }

func (b brokenLedger) CheckIntegrity(_ context.Context, companyID uuid.UUID, asOf time.Time, _ ...reports.ReadOption) (reports.IntegrityReport, error) {
	report := reports.IntegrityReport{CompanyID: companyID, AsOf: asOf}
	if companyID == b.bad {
		report.Findings = []string{"trial balance off by 0.01"}
	}
	return report, nil
}

type staticCompanies []uuid.UUID

func (s staticCompanies) ListCompanies(context.Context) ([]uuid.UUID, error) { return s, nil }

func TestLedgerIntegrityJobReportsFindings(t *testing.T) {
	good, bad := uuid.New(), uuid.New()
	observer := &integrityRecorder{findings: map[string]int{}}
	job := NewLedgerIntegrityJob(staticCompanies{good, bad}, brokenLedger{bad: bad}, observer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntegrityFindings)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 1, observer.findings[bad.String()])
	assert.Equal(t, 0, observer.findings[good.String()])

	payload, _ := json.Marshal(LedgerIntegrityPayload{CompanyID: &good, AsOf: "2024-12-31"})
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, payload)))

	payload, _ = json.Marshal(LedgerIntegrityPayload{AsOf: "31/12/2024"})
	assert.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, payload)), asynq.SkipRetry)
}

func TestAnalyticsWarmupJob(t *testing.T) {
	companyID := uuid.New()
	e := newEnv(t, companyID)
	e.storeTransaction(t, companyID, "100.00", "rent")
	svc := analytics.NewService(e.store.Transactions(), nil, nil)
	job := NewAnalyticsWarmupJob(svc, e.accounts, nil, e.metrics)

	task, err := NewAnalyticsWarmupTask(AnalyticsWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	task, err = NewAnalyticsWarmupTask(AnalyticsWarmupPayload{CompanyID: &companyID})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestNewLedgerPostTaskUsesTransactionID(t *testing.T) {
	payload := LedgerPostPayload{CompanyID: uuid.New(), TransactionID: uuid.New()}
	task, err := NewLedgerPostTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskLedgerPost, task.Type())
	var decoded LedgerPostPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, payload, decoded)
}
