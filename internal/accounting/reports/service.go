package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/shared"
)

// Repository reads a consistent snapshot of account balances.
type Repository interface {
	// Balances returns every account of the company, archived included,
	// ordered by code. An unknown company yields no rows.
	Balances(ctx context.Context, q BalanceQuery) ([]AccountBalance, error)
}

// Service verifies the ledger. All methods are read-only.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the verification service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CalculateTrialBalance aggregates entries dated on or before the calendar
// date of asOf. The time of day is ignored.
func (s *Service) CalculateTrialBalance(ctx context.Context, companyID uuid.UUID, asOf time.Time, opts ...ReadOption) (TrialBalance, error) {
	if !asOf.IsZero() {
		asOf = DateOf(asOf)
	}
	balances, err := s.load(ctx, companyID, asOf, opts)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(balances)
	tb.CompanyID = companyID
	tb.AsOf = asOf
	return tb, nil
}

// VerifyAccountingEquation checks Assets == Liabilities + Equity from cached
// balances, independently of the journal aggregation. Equity here includes
// unclosed current earnings (Revenue - Expenses); see EquationCheck.
func (s *Service) VerifyAccountingEquation(ctx context.Context, companyID uuid.UUID, opts ...ReadOption) (EquationCheck, error) {
	balances, err := s.load(ctx, companyID, time.Time{}, opts)
	if err != nil {
		return EquationCheck{}, err
	}
	check := BuildEquationCheck(balances)
	check.CompanyID = companyID
	return check, nil
}

// Reconcile compares cached balances with the ledger account by account.
func (s *Service) Reconcile(ctx context.Context, companyID uuid.UUID, opts ...ReadOption) ([]Divergence, error) {
	balances, err := s.load(ctx, companyID, time.Time{}, opts)
	if err != nil {
		return nil, err
	}
	return Reconcile(balances), nil
}

// CheckIntegrity runs every check on one snapshot. Findings are logged and
// returned, never raised.
func (s *Service) CheckIntegrity(ctx context.Context, companyID uuid.UUID, asOf time.Time, opts ...ReadOption) (IntegrityReport, error) {
	o := applyReadOptions(opts)
	balances, err := s.load(ctx, companyID, asOf, opts)
	if err != nil {
		return IntegrityReport{}, err
	}
	report := buildIntegrityReport(companyID, asOf, balances)
	report.CheckedAt = s.now().UTC()
	report.Strict = o.mode == shared.ReadSerializable
	if !report.Healthy() {
		s.logger.Warn("ledger integrity findings",
			slog.String("company_id", companyID.String()),
			slog.Int("findings", len(report.Findings)),
			slog.Any("details", report.Findings))
	}
	return report, nil
}

// BalanceSheet builds the balance sheet as of a date.
func (s *Service) BalanceSheet(ctx context.Context, companyID uuid.UUID, asOf time.Time, opts ...ReadOption) (BalanceSheet, error) {
	balances, err := s.load(ctx, companyID, asOf, opts)
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(balances), nil
}

// ProfitAndLoss builds the income statement up to a date.
func (s *Service) ProfitAndLoss(ctx context.Context, companyID uuid.UUID, asOf time.Time, opts ...ReadOption) (ProfitAndLoss, error) {
	balances, err := s.load(ctx, companyID, asOf, opts)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(balances), nil
}

func (s *Service) load(ctx context.Context, companyID uuid.UUID, asOf time.Time, opts []ReadOption) ([]AccountBalance, error) {
	if companyID == uuid.Nil {
		return nil, shared.Validation("company_id", "required")
	}
	if !asOf.IsZero() {
		asOf = DateOf(asOf)
	}
	o := applyReadOptions(opts)
	balances, err := s.repo.Balances(ctx, BalanceQuery{CompanyID: companyID, AsOf: asOf, Mode: o.mode})
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return nil, shared.NotFound("company", companyID.String())
	}
	return balances, nil
}
