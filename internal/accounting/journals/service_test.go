package journals_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/accounting/journals"
	"github.com/odyssey-erp/runway/internal/accounting/mappings"
	"github.com/odyssey-erp/runway/internal/accounting/reports"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/platform/memdb"
	"github.com/odyssey-erp/runway/internal/shared"
	_ "github.com/odyssey-erp/runway/testing"
)

var postedOn = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memdb.Store
	accounts  *accounts.Service
	poster    *journals.Poster
	reports   *reports.Service
	companyID uuid.UUID
	bumps     *bumpRecorder
	observer  *observerRecorder
}

type bumpRecorder struct {
	mu    sync.Mutex
	count map[uuid.UUID]int
}

func (b *bumpRecorder) Bump(_ context.Context, companyID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count[companyID]++
	return nil
}

type observerRecorder struct {
	mu       sync.Mutex
	posts    map[string]int
	failures map[string]int
	degraded []string
}

func (o *observerRecorder) ObservePosting(kind string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failures[kind]++
		return
	}
	o.posts[kind]++
}

func (o *observerRecorder) ObserveDegraded(category, fallbackCode string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degraded = append(o.degraded, category+"->"+fallbackCode)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table, err := mappings.Default()
	require.NoError(t, err)
	store := memdb.New()
	f := &fixture{
		store:     store,
		accounts:  accounts.NewService(store.Accounts(), nil),
		poster:    journals.NewPoster(store.Journals(), table, store, nil),
		reports:   reports.NewService(store.Reports(), nil),
		companyID: uuid.New(),
		bumps:     &bumpRecorder{count: map[uuid.UUID]int{}},
		observer:  &observerRecorder{posts: map[string]int{}, failures: map[string]int{}},
	}
	f.poster.WithCacheInvalidator(f.bumps)
	f.poster.WithObserver(f.observer)
	_, err = f.accounts.Initialize(context.Background(), f.companyID)
	require.NoError(t, err)
	return f
}

func (f *fixture) balance(t *testing.T, code string) money.Money {
	t.Helper()
	acc, err := f.accounts.GetByCode(context.Background(), f.companyID, code)
	require.NoError(t, err)
	return acc.Balance
}

func (f *fixture) post(t *testing.T, amount money.Money, category string) journals.PostingResult {
	t.Helper()
	res, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
		Amount:        amount,
		Category:      category,
		Description:   "test " + category,
		Date:          postedOn,
	})
	require.NoError(t, err)
	return res
}

func taxOf(v money.Money) *money.Money { return &v }

func TestPostExpenseWithIntraStateTax(t *testing.T) {
	f := newFixture(t)
	res, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
		Amount:        money.FromMajor(1000),
		Category:      "software",
		Description:   "Figma annual plan",
		Date:          postedOn,
		TaxAmount:     taxOf(money.FromMajor(180)),
	})
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	require.Len(t, res.Entries, 5)

	debit, credit := res.Totals()
	assert.Equal(t, money.FromMajor(1180), debit)
	assert.Equal(t, debit, credit)

	assert.Equal(t, money.FromMajor(1000), f.balance(t, "5400"))
	assert.Equal(t, money.FromMajor(90), f.balance(t, accounts.CodeGSTInputCGST))
	assert.Equal(t, money.FromMajor(90), f.balance(t, accounts.CodeGSTInputSGST))
	assert.Equal(t, money.FromMajor(-1180), f.balance(t, accounts.CodeBankClearing))
	require.NotNil(t, res.Tax)
	assert.True(t, res.Tax.Input)

	assert.Equal(t, 1, f.bumps.count[f.companyID])
	assert.Equal(t, 1, f.observer.posts["POST"])
	logs := f.store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "journal.post", logs[0].Action)
}

func TestPostRevenueWithInterStateTax(t *testing.T) {
	f := newFixture(t)
	res, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
		Amount:        money.FromMajor(-1000),
		Category:      "sales",
		Description:   "Invoice 42",
		Date:          postedOn,
		TaxAmount:     taxOf(money.FromMajor(180)),
		InterState:    true,
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 4)
	assert.Equal(t, money.FromMajor(1000), f.balance(t, "4000"))
	assert.Equal(t, money.FromMajor(180), f.balance(t, accounts.CodeGSTOutputIGST))
	assert.Equal(t, money.FromMajor(1180), f.balance(t, accounts.CodeBankClearing))
	assert.False(t, res.Tax.Input)
}

func TestPostBooksFullAmountOnCategoryAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
		Amount:        money.FromMajor(1180),
		Category:      "software",
		Date:          postedOn,
		TaxAmount:     taxOf(money.FromMajor(180)),
	})
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(1180), f.balance(t, "5400"))
	assert.Equal(t, money.FromMajor(-1360), f.balance(t, accounts.CodeBankClearing))

	// Tax larger than the amount is still a valid posting.
	res, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
		Amount:        money.FromMajor(100),
		Category:      "software",
		Date:          postedOn,
		TaxAmount:     taxOf(money.FromMajor(200)),
	})
	require.NoError(t, err)
	debit, credit := res.Totals()
	assert.Equal(t, money.FromMajor(300), debit)
	assert.Equal(t, debit, credit)
	assert.Equal(t, money.FromMajor(1280), f.balance(t, "5400"))
}

func TestPostSideFollowsCashDirection(t *testing.T) {
	f := newFixture(t)

	// Loan drawdown, then a partial repayment.
	f.post(t, money.FromMajor(-1000), "loan")
	f.post(t, money.FromMajor(400), "loan")
	assert.Equal(t, money.FromMajor(600), f.balance(t, "2600"))
	assert.Equal(t, money.FromMajor(600), f.balance(t, accounts.CodeBankClearing))

	// Equipment bought, then part of it sold back.
	f.post(t, money.FromMajor(250), "equipment")
	f.post(t, money.FromMajor(-50), "equipment")
	assert.Equal(t, money.FromMajor(200), f.balance(t, "1500"))
	assert.Equal(t, money.FromMajor(400), f.balance(t, accounts.CodeBankClearing))

	// A rent refund reduces the expense and brings cash in.
	f.post(t, money.FromMajor(1000), "rent")
	f.post(t, money.FromMajor(-300), "rent")
	assert.Equal(t, money.FromMajor(700), f.balance(t, "5200"))
	assert.Equal(t, money.FromMajor(-300), f.balance(t, accounts.CodeBankClearing))

	// A customer refund reduces revenue and sends cash out.
	f.post(t, money.FromMajor(-500), "sales")
	f.post(t, money.FromMajor(200), "sales")
	assert.Equal(t, money.FromMajor(300), f.balance(t, "4000"))
	assert.Equal(t, money.Zero, f.balance(t, accounts.CodeBankClearing))

	report, err := f.reports.CheckIntegrity(context.Background(), f.companyID, postedOn)
	require.NoError(t, err)
	assert.True(t, report.Healthy(), "findings: %v", report.Findings)
}

func TestPostUnknownCategoryFallsBackWithWarning(t *testing.T) {
	f := newFixture(t)

	res := f.post(t, money.FromMajor(250), "team offsite snacks")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, accounts.CodeGeneralExpense, res.Warnings[0].FallbackCode)
	assert.Equal(t, mappings.SourceFallback, res.Resolution.Source)
	assert.Equal(t, money.FromMajor(250), f.balance(t, accounts.CodeGeneralExpense))

	res = f.post(t, money.FromMajor(-75), "mystery refund")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, accounts.CodeOtherIncome, res.Warnings[0].FallbackCode)
	assert.Equal(t, money.FromMajor(75), f.balance(t, accounts.CodeOtherIncome))

	assert.Len(t, f.observer.degraded, 2)
}

func TestPostArchivedTargetFallsBack(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.ArchiveAccount(context.Background(), f.companyID, "5500")
	require.NoError(t, err)

	res := f.post(t, money.FromMajor(40), "marketing")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Reason, "archived")
	assert.Equal(t, money.Zero, f.balance(t, "5500"))
	assert.Equal(t, money.FromMajor(40), f.balance(t, accounts.CodeGeneralExpense))
}

func TestPostKeywordClassification(t *testing.T) {
	f := newFixture(t)
	res, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
		Amount:        money.FromMajor(300),
		Description:   "AWS bill for February",
		Date:          postedOn,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, mappings.SourceKeyword, res.Resolution.Source)
	assert.Equal(t, money.FromMajor(300), f.balance(t, "6300"))
}

func TestPostSameTransactionTwice(t *testing.T) {
	f := newFixture(t)
	in := journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
		Amount:        money.FromMajor(100),
		Category:      "rent",
		Date:          postedOn,
	}
	_, err := f.poster.PostTransaction(context.Background(), in)
	require.NoError(t, err)
	_, err = f.poster.PostTransaction(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrAlreadyPosted)
	assert.Equal(t, money.FromMajor(100), f.balance(t, "5200"))
}

func TestPostRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	base := journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
		Amount:        money.FromMajor(100),
		Category:      "rent",
		Date:          postedOn,
	}
	cases := map[string]func(in *journals.PostingInput){
		"zero amount":     func(in *journals.PostingInput) { in.Amount = 0 },
		"negative tax":    func(in *journals.PostingInput) { in.TaxAmount = taxOf(money.FromMajor(-1)) },
		"missing date":    func(in *journals.PostingInput) { in.Date = time.Time{} },
		"missing company": func(in *journals.PostingInput) { in.CompanyID = uuid.Nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			_, err := f.poster.PostTransaction(context.Background(), in)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	assert.Equal(t, money.Zero, f.balance(t, "5200"))
	assert.Empty(t, f.store.AuditLogs())
}

func TestPostUnknownCompany(t *testing.T) {
	f := newFixture(t)
	_, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     uuid.New(),
		TransactionID: uuid.New(),
		Amount:        money.FromMajor(10),
		Category:      "rent",
		Date:          postedOn,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

type failingBalances struct {
	journals.Repository
}

func (r failingBalances) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.Repository.WithTx(ctx, func(ctx context.Context, tx journals.TxRepository) error {
		return fn(ctx, failingTx{tx})
	})
}

type failingTx struct {
	journals.TxRepository
}

func (failingTx) ApplyBalanceDeltas(context.Context, uuid.UUID, map[uuid.UUID]money.Money, time.Time) error {
	return errors.New("disk full")
}

func TestPostIsAtomicWhenBalanceUpdateFails(t *testing.T) {
	f := newFixture(t)
	table, err := mappings.Default()
	require.NoError(t, err)
	poster := journals.NewPoster(failingBalances{f.store.Journals()}, table, nil, nil)

	txID := uuid.New()
	_, err = poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: txID,
		Amount:        money.FromMajor(100),
		Category:      "rent",
		Date:          postedOn,
	})
	require.Error(t, err)

	_, err = f.poster.Entries(context.Background(), f.companyID, txID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// The transaction id was not consumed either.
	_, err = f.poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: txID,
		Amount:        money.FromMajor(100),
		Category:      "rent",
		Date:          postedOn,
	})
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(100), f.balance(t, "5200"))
}

func TestReverseTransaction(t *testing.T) {
	f := newFixture(t)
	original := f.post(t, money.FromMajor(500), "payroll")

	rev, err := f.poster.ReverseTransaction(context.Background(), journals.ReverseInput{
		CompanyID:     f.companyID,
		TransactionID: original.TransactionID,
		Date:          postedOn.AddDate(0, 0, 1),
		Memo:          "duplicate payout",
	})
	require.NoError(t, err)
	require.Len(t, rev.Entries, len(original.Entries))
	assert.NotEqual(t, original.TransactionID, rev.TransactionID)
	assert.Equal(t, money.Zero, f.balance(t, "5100"))
	assert.Equal(t, money.Zero, f.balance(t, accounts.CodeBankClearing))

	entries, err := f.poster.Entries(context.Background(), f.companyID, original.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, original.Entries, entries)

	_, err = f.poster.ReverseTransaction(context.Background(), journals.ReverseInput{
		CompanyID:     f.companyID,
		TransactionID: original.TransactionID,
	})
	require.ErrorIs(t, err, shared.ErrAlreadyPosted)

	_, err = f.poster.ReverseTransaction(context.Background(), journals.ReverseInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 1, f.observer.posts["REVERSE"])
}

func TestCheckBalancedRejectsUnbalancedSets(t *testing.T) {
	txID := uuid.New()
	err := journals.CheckBalanced(txID, []journals.JournalEntry{
		{AccountCode: "5200", Debit: money.FromMajor(100)},
		{AccountCode: "1010", Credit: money.FromMajor(99)},
	})
	var unbalanced *shared.UnbalancedPostingError
	require.ErrorAs(t, err, &unbalanced)
	assert.Equal(t, txID, unbalanced.TransactionID)
	assert.ErrorIs(t, err, shared.ErrUnbalanced)

	err = journals.CheckBalanced(txID, []journals.JournalEntry{
		{AccountCode: "5200", Debit: money.FromMajor(100), Credit: money.FromMajor(100)},
		{AccountCode: "1010"},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestConcurrentPostingsConverge(t *testing.T) {
	for round := 0; round < 200; round++ {
		f := newFixture(t)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for _, amount := range []int64{100, 50} {
			wg.Add(1)
			go func(amount int64) {
				defer wg.Done()
				<-start
				_, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
					CompanyID:     f.companyID,
					TransactionID: uuid.New(),
					Amount:        money.FromMajor(amount),
					Category:      "rent",
					Date:          postedOn,
				})
				assert.NoError(t, err)
			}(amount)
		}
		close(start)
		wg.Wait()
		require.Equal(t, money.FromMajor(150), f.balance(t, "5200"), "round %d", round)
		require.Equal(t, money.FromMajor(-150), f.balance(t, accounts.CodeBankClearing), "round %d", round)
	}
}

func TestManyConcurrentPostingsKeepLedgerIntact(t *testing.T) {
	f := newFixture(t)
	categories := []string{"rent", "payroll", "sales", "software", "unmapped", "investment"}
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := money.FromMinor(int64(i*137 + 1))
			if i%3 == 0 {
				amount = amount.Neg()
			}
			_, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
				CompanyID:     f.companyID,
				TransactionID: uuid.New(),
				Amount:        amount,
				Category:      categories[i%len(categories)],
				Date:          postedOn,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	report, err := f.reports.CheckIntegrity(context.Background(), f.companyID, postedOn, reports.ReadSerializable())
	require.NoError(t, err)
	assert.True(t, report.Healthy(), "findings: %v", report.Findings)
	assert.True(t, report.Strict)
}

func TestTrialBalanceCutoffUsesCalendarDate(t *testing.T) {
	f := newFixture(t)
	_, err := f.poster.PostTransaction(context.Background(), journals.PostingInput{
		CompanyID:     f.companyID,
		TransactionID: uuid.New(),
		Amount:        money.FromMajor(100),
		Category:      "rent",
		Date:          postedOn.Add(15 * time.Hour),
	})
	require.NoError(t, err)

	tb, err := f.reports.CalculateTrialBalance(context.Background(), f.companyID, postedOn)
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(100), tb.TotalDebits)
	assert.Equal(t, postedOn, tb.AsOf)

	tb, err = f.reports.CalculateTrialBalance(context.Background(), f.companyID, postedOn.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(100), tb.TotalDebits)
	assert.Equal(t, postedOn, tb.AsOf)

	tb, err = f.reports.CalculateTrialBalance(context.Background(), f.companyID, postedOn.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, tb.Entries)
	assert.True(t, tb.IsBalanced)
}
