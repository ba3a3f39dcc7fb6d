package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
	"github.com/odyssey-erp/runway/internal/transactions"
)

type mockRepo struct {
	mu    sync.Mutex
	txs   []transactions.Transaction
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (m *mockRepo) List(ctx context.Context, companyID uuid.UUID, filter transactions.Filter) ([]transactions.Transaction, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transactions.Transaction, len(m.txs))
	copy(out, m.txs)
	return out, m.err
}

func (m *mockRepo) add(date string, amount string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	m.txs = append(m.txs, transactions.Transaction{ID: uuid.New(), Date: d, Amount: money.MustParse(amount)})
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute), nil)
}

func TestMonthlyBucketsAndMeanBurn(t *testing.T) {
	repo := &mockRepo{}
	repo.add("2024-02-03", "200")
	repo.add("2024-01-05", "100")
	repo.add("2024-01-20", "50")

	buckets := MonthlyBuckets(repo.txs)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets got %d", len(buckets))
	}
	want := []MonthBurn{
		{Month: "2024-01", Burn: money.MustParse("150"), TransactionCount: 2},
		{Month: "2024-02", Burn: money.MustParse("200"), TransactionCount: 1},
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d: expected %+v got %+v", i, want[i], buckets[i])
		}
	}
	if burn := MeanBurn(buckets); burn != money.MustParse("175") {
		t.Fatalf("expected burn 175 got %s", burn)
	}
	if burn := MeanBurn(nil); !burn.IsZero() {
		t.Fatalf("expected zero burn without transactions got %s", burn)
	}
}

func TestInflowsReduceBurn(t *testing.T) {
	repo := &mockRepo{}
	repo.add("2024-03-01", "500")
	repo.add("2024-03-15", "-200")
	buckets := MonthlyBuckets(repo.txs)
	if len(buckets) != 1 || buckets[0].Burn != money.MustParse("300") {
		t.Fatalf("unexpected buckets %+v", buckets)
	}
}

func TestComputeRunway(t *testing.T) {
	r := ComputeRunway(money.MustParse("950000"), money.MustParse("50000"))
	if r.Infinite || r.Months != 19 {
		t.Fatalf("expected 19 months got %+v", r)
	}
	r = ComputeRunway(money.MustParse("1000"), money.MustParse("300"))
	if r.Months != 3.33 {
		t.Fatalf("expected 3.33 months got %v", r.Months)
	}
	for _, burn := range []money.Money{0, money.MustParse("-10")} {
		r = ComputeRunway(money.MustParse("950000"), burn)
		if !r.IsInfinite() {
			t.Fatalf("expected infinite runway for burn %s got %+v", burn, r)
		}
	}
	if ComputeRunway(0, money.MustParse("10")) == InfiniteRunway {
		t.Fatalf("zero cash must not be confused with infinite runway")
	}
}

func TestRunwayJSON(t *testing.T) {
	raw, err := json.Marshal(InfiniteRunway)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"months":null,"infinite":true}` {
		t.Fatalf("unexpected infinite encoding %s", raw)
	}
	raw, _ = json.Marshal(Runway{Months: 19})
	var back Runway
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Infinite || back.Months != 19 {
		t.Fatalf("round trip lost value: %+v", back)
	}
	if InfiniteRunway.String() != "infinite" || back.String() != "19.00 months" {
		t.Fatalf("unexpected rendering %q %q", InfiniteRunway.String(), back.String())
	}
}

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name  string
		burns []string
		trend TrendDirection
		pct   float64
	}{
		{"increasing", []string{"150", "200"}, TrendIncreasing, 33.33},
		{"decreasing", []string{"200", "150"}, TrendDecreasing, -25},
		{"stable within threshold", []string{"100", "104"}, TrendStable, 4},
		{"exactly five percent", []string{"100", "105"}, TrendStable, 5},
		{"single month", []string{"100"}, TrendStable, 0},
		{"no months", nil, TrendStable, 0},
		{"previous not positive", []string{"-50", "100"}, TrendStable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buckets []MonthBurn
			for i, b := range tt.burns {
				buckets = append(buckets, MonthBurn{Month: time.Date(2024, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC).Format(MonthLayout), Burn: money.MustParse(b), TransactionCount: 1})
			}
			got := ComputeTrend(buckets)
			if got.Trend != tt.trend {
				t.Fatalf("expected %s got %s", tt.trend, got.Trend)
			}
			if got.AccelerationPct != tt.pct {
				t.Fatalf("expected %.2f%% got %.2f%%", tt.pct, got.AccelerationPct)
			}
		})
	}
}

func TestComputeTrendReturnsTrailingSixMonths(t *testing.T) {
	var buckets []MonthBurn
	for m := 1; m <= 9; m++ {
		buckets = append(buckets, MonthBurn{Month: time.Date(2024, time.Month(m), 1, 0, 0, 0, 0, time.UTC).Format(MonthLayout), Burn: money.FromMajor(int64(m * 100)), TransactionCount: 1})
	}
	got := ComputeTrend(buckets)
	if len(got.Months) != TrendWindow {
		t.Fatalf("expected %d months got %d", TrendWindow, len(got.Months))
	}
	if got.Months[0].Month != "2024-04" || got.Months[5].Month != "2024-09" {
		t.Fatalf("unexpected window %s..%s", got.Months[0].Month, got.Months[5].Month)
	}
	if got.Current != money.FromMajor(900) || got.Previous != money.FromMajor(800) {
		t.Fatalf("unexpected current/previous %s/%s", got.Current, got.Previous)
	}
	got.Months[0].Burn = 0
	if buckets[3].Burn == 0 {
		t.Fatalf("trend window must not alias the input")
	}
}

func TestServiceCachesAndBumps(t *testing.T) {
	repo := &mockRepo{}
	repo.add("2024-01-05", "100")
	repo.add("2024-01-20", "50")
	repo.add("2024-02-03", "200")
	svc := newTestService(t, repo)
	ctx := context.Background()
	companyID := uuid.New()

	burn, err := svc.MonthlyBurn(ctx, companyID)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if burn != money.MustParse("175") {
		t.Fatalf("expected 175 got %s", burn)
	}
	if _, err := svc.BurnTrend(ctx, companyID); err != nil {
		t.Fatalf("trend: %v", err)
	}
	if calls := repo.calls.Load(); calls != 1 {
		t.Fatalf("expected cached buckets, repo called %d times", calls)
	}

	repo.add("2024-03-01", "300")
	if err := svc.Cache().Bump(ctx, companyID); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	trend, err := svc.BurnTrend(ctx, companyID)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if trend.Trend != TrendIncreasing || trend.Current != money.MustParse("300") {
		t.Fatalf("expected refreshed trend got %+v", trend)
	}
	if calls := repo.calls.Load(); calls != 2 {
		t.Fatalf("expected repo to refresh once, calls %d", calls)
	}

	// A bump for another company leaves this one cached.
	if err := svc.Cache().Bump(ctx, uuid.New()); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	if _, err := svc.MonthlyBurn(ctx, companyID); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if calls := repo.calls.Load(); calls != 2 {
		t.Fatalf("unrelated bump invalidated cache, calls %d", calls)
	}
}

func TestServiceRunwayAndSummary(t *testing.T) {
	repo := &mockRepo{}
	repo.add("2024-05-01", "50000")
	svc := newTestService(t, repo)
	ctx := context.Background()
	companyID := uuid.New()

	r, err := svc.Runway(ctx, companyID, money.MustParse("950000"))
	if err != nil {
		t.Fatalf("runway: %v", err)
	}
	if r.Months != 19 {
		t.Fatalf("expected 19 months got %+v", r)
	}

	empty := newTestService(t, &mockRepo{})
	r, err = empty.Runway(ctx, companyID, money.MustParse("950000"))
	if err != nil {
		t.Fatalf("runway: %v", err)
	}
	if !r.Infinite {
		t.Fatalf("expected infinite runway without burn got %+v", r)
	}

	summary, err := svc.Summary(ctx, companyID, money.MustParse("950000"))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.MonthlyBurn != money.MustParse("50000") || summary.Runway.Months != 19 || summary.Trend.Trend != TrendStable {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestServiceSharesConcurrentLoads(t *testing.T) {
	repo := &mockRepo{delay: 150 * time.Millisecond}
	repo.add("2024-01-05", "100")
	svc := newTestService(t, repo)
	companyID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.MonthlyBurn(context.Background(), companyID); err != nil {
				t.Errorf("burn: %v", err)
			}
		}()
	}
	wg.Wait()
	if calls := repo.calls.Load(); calls != 1 {
		t.Fatalf("expected one shared load, repo called %d times", calls)
	}
}

func TestServiceWithoutCache(t *testing.T) {
	repo := &mockRepo{}
	repo.add("2024-01-05", "100")
	svc := NewService(repo, nil, nil)
	for i := 0; i < 2; i++ {
		if _, err := svc.MonthlyBurn(context.Background(), uuid.New()); err != nil {
			t.Fatalf("burn: %v", err)
		}
	}
	if calls := repo.calls.Load(); calls != 2 {
		t.Fatalf("expected uncached loads, calls %d", calls)
	}
	if err := svc.Cache().Bump(context.Background(), uuid.New()); err != nil {
		t.Fatalf("nil cache bump must be a no-op: %v", err)
	}
}

func TestServiceErrors(t *testing.T) {
	svc := newTestService(t, &mockRepo{err: errors.New("boom")})
	if _, err := svc.MonthlyBurn(context.Background(), uuid.Nil); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
	if _, err := svc.MonthlyBurn(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected repository error to propagate")
	}
}

func TestCacheSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan uuid.UUID, 1)
	if err := cache.Subscribe(ctx, nil, func(_ context.Context, id uuid.UUID) { got <- id }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	companyID := uuid.New()
	if err := cache.Bump(ctx, companyID); err != nil {
		t.Fatalf("bump: %v", err)
	}
	select {
	case id := <-got:
		if id != companyID {
			t.Fatalf("expected %s got %s", companyID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("bump was not delivered")
	}
	ver, err := cache.Version(ctx, companyID)
	if err != nil || ver != 1 {
		t.Fatalf("expected version 1 after first bump got %d (%v)", ver, err)
	}
}
