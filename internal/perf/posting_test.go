package perf

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/accounting/journals"
	"github.com/odyssey-erp/runway/internal/accounting/mappings"
	"github.com/odyssey-erp/runway/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/runway/internal/jobs"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/observability"
	"github.com/odyssey-erp/runway/internal/platform/memdb"
	"github.com/odyssey-erp/runway/jobs"
	_ "github.com/odyssey-erp/runway/testing"
)

func newPoster(t *testing.T, store *memdb.Store, reg *prometheus.Registry) *journals.Poster {
	t.Helper()
	table, err := mappings.Default()
	if err != nil {
		t.Fatalf("load mapping table: %v", err)
	}
	poster := journals.NewPoster(store.Journals(), table, store, nil)
	poster.WithObserver(observability.NewLedgerMetrics(reg))
	return poster
}

func TestConcurrentPostingLatencyAndBalance(t *testing.T) {
	const (
		workers   = 8
		perWorker = 25
	)
	ctx := context.Background()
	store := memdb.New()
	reg := prometheus.NewRegistry()
	poster := newPoster(t, store, reg)
	companyID := uuid.New()
	if _, err := accounts.NewService(store.Accounts(), nil).Initialize(ctx, companyID); err != nil {
		t.Fatalf("seed chart: %v", err)
	}

	var mu sync.Mutex
	samples := make([]time.Duration, 0, workers*perWorker)
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				start := time.Now()
				_, err := poster.PostTransaction(ctx, journals.PostingInput{
					CompanyID:     companyID,
					TransactionID: uuid.New(),
					Amount:        money.MustParse("100.00"),
					Category:      "software",
					Date:          time.Date(2024, 5, 1+i%28, 0, 0, 0, 0, time.UTC),
					TaxAmount:     ptr(money.MustParse("18.00")),
				})
				if err != nil {
					errs <- err
					return
				}
				mu.Lock()
				samples = append(samples, time.Since(start))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent posting failed: %v", err)
	}

	if p95 := percentile95(samples); p95 > 250*time.Millisecond {
		t.Fatalf("posting latency regression: p95=%s", p95)
	}

	report, err := reports.NewService(store.Reports(), nil).CheckIntegrity(ctx, companyID, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("integrity: %v", err)
	}
	if !report.Healthy() {
		t.Fatalf("ledger drifted under concurrency: %v", report.Findings)
	}
	want := money.MustParse("118.00") * workers * perWorker
	if report.TrialBalance.TotalDebits != want {
		t.Fatalf("total debits = %s, want %s", report.TrialBalance.TotalDebits, want)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	ok := metricValue(t, families, "runway_ledger_postings_total", map[string]string{"kind": "POST", "outcome": "ok"})
	if ok != workers*perWorker {
		t.Fatalf("ok postings = %v, want %d", ok, workers*perWorker)
	}
	if mean := histogramMean(t, families, "runway_ledger_posting_duration_seconds", map[string]string{"kind": "POST"}); mean > 0.1 {
		t.Fatalf("mean posting duration above budget: %f", mean)
	}
}

func TestIntegrityJobThroughput(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	chart := accounts.NewService(store.Accounts(), nil)
	poster := newPoster(t, store, prometheus.NewRegistry())
	const companies = 12
	for i := 0; i < companies; i++ {
		companyID := uuid.New()
		if _, err := chart.Initialize(ctx, companyID); err != nil {
			t.Fatalf("seed chart: %v", err)
		}
		if _, err := poster.PostTransaction(ctx, journals.PostingInput{
			CompanyID:     companyID,
			TransactionID: uuid.New(),
			Amount:        money.MustParse("-2500.00"),
			Category:      "subscription_revenue",
			Date:          time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	job := jobs.NewLedgerIntegrityJob(chart, reports.NewService(store.Reports(), nil), nil, nil, jobmetrics.NewMetrics(reg))
	task, err := jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{AsOf: "2024-06-30"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	for run := 0; run < 3; run++ {
		if err := job.Handle(ctx, task); err != nil {
			t.Fatalf("integrity run %d: %v", run, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if runs := metricValue(t, families, "runway_jobs_total", map[string]string{"job": jobs.TaskLedgerIntegrity, "status": "success"}); runs != 3 {
		t.Fatalf("successful runs = %v, want 3", runs)
	}
	if healthy := metricValue(t, families, "runway_job_items_total", map[string]string{"job": jobs.TaskLedgerIntegrity, "outcome": "healthy"}); healthy != 3*companies {
		t.Fatalf("healthy companies = %v, want %d", healthy, 3*companies)
	}
	if mean := histogramMean(t, families, "runway_job_duration_seconds", map[string]string{"job": jobs.TaskLedgerIntegrity}); mean > 2.0 {
		t.Fatalf("integrity run above budget: %f", mean)
	}
}

func ptr[T any](v T) *T { return &v }

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) < len(labels) {
		return false
	}
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok && lp.GetValue() != val {
			return false
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
