package accounts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/shared"
)

// Service manages a company's chart of accounts.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the chart-of-accounts service.
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

// Initialize seeds DefaultChart for a company that has no accounts yet.
// Calling it again is a no-op and reports zero created accounts.
func (s *Service) Initialize(ctx context.Context, companyID uuid.UUID) (int, error) {
	if companyID == uuid.Nil {
		return 0, shared.Validation("company_id", "required")
	}
	now := s.now().UTC()
	chart := DefaultChart()
	seed := make([]Account, 0, len(chart))
	for _, t := range chart {
		seed = append(seed, Account{
			ID:        uuid.New(),
			CompanyID: companyID,
			Code:      t.Code,
			Name:      t.Name,
			Type:      t.Type,
			Subtype:   t.Subtype,
			Category:  t.Category,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	created, err := s.repo.InsertIfEmpty(ctx, companyID, seed)
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.logger.Info("chart of accounts seeded", slog.String("company_id", companyID.String()), slog.Int("accounts", created))
	}
	return created, nil
}

// CreateAccount adds a single account to the company's chart.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.CompanyID == uuid.Nil {
		return Account{}, shared.Validation("company_id", "required")
	}
	if err := shared.ValidateStruct(input); err != nil {
		return Account{}, err
	}
	now := s.now().UTC()
	return s.repo.Insert(ctx, Account{
		ID:        uuid.New(),
		CompanyID: input.CompanyID,
		Code:      input.Code,
		Name:      input.Name,
		Type:      input.Type,
		Subtype:   input.Subtype,
		Category:  input.Category,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// GetAccounts lists accounts ordered by code. Archived accounts are skipped
// unless the filter asks for them. A company without any chart is NotFound; a
// filter that matches nothing returns an empty list.
func (s *Service) GetAccounts(ctx context.Context, companyID uuid.UUID, filter Filter) ([]Account, error) {
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, shared.Validation("type", "unknown account type %q", string(*filter.Type))
	}
	list, err := s.repo.List(ctx, companyID, filter)
	if err != nil || len(list) > 0 {
		return list, err
	}
	all, err := s.repo.List(ctx, companyID, Filter{IncludeArchived: true})
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, shared.NotFound("company", companyID.String())
	}
	return list, nil
}

// GetByCode loads one account, archived or not.
func (s *Service) GetByCode(ctx context.Context, companyID uuid.UUID, code string) (Account, error) {
	return s.repo.GetByCode(ctx, companyID, strings.TrimSpace(code))
}

// ArchiveAccount soft-archives an account. Its history and balance stay.
func (s *Service) ArchiveAccount(ctx context.Context, companyID uuid.UUID, code string) (Account, error) {
	acc, err := s.repo.Archive(ctx, companyID, strings.TrimSpace(code), s.now().UTC())
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account archived", slog.String("company_id", companyID.String()), slog.String("code", acc.Code))
	return acc, nil
}

// ListCompanies returns every company that has a chart.
func (s *Service) ListCompanies(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListCompanies(ctx)
}
