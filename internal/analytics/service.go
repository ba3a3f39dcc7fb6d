package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
	"github.com/odyssey-erp/runway/internal/transactions"
)

// Repository is the slice of the transaction store analytics reads.
type Repository interface {
	List(ctx context.Context, companyID uuid.UUID, filter transactions.Filter) ([]transactions.Transaction, error)
}

// Service coordinates analytics computation with the cache layer.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService wires a Repository with a Cache helper. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Cache exposes the cache so posting can invalidate it.
func (s *Service) Cache() *Cache { return s.cache }

// MonthBuckets returns every populated month of the company, oldest first.
func (s *Service) MonthBuckets(ctx context.Context, companyID uuid.UUID) ([]MonthBurn, error) {
	if companyID == uuid.Nil {
		return nil, shared.Validation("company_id", "required")
	}
	loader := func(ctx context.Context) (any, error) {
		txs, err := s.repo.List(ctx, companyID, transactions.Filter{})
		if err != nil {
			return nil, fmt.Errorf("analytics: list transactions: %w", err)
		}
		return MonthlyBuckets(txs), nil
	}

	key, err := s.cache.BuildKey(ctx, companyID, "months")
	if err != nil {
		s.logger.Warn("analytics cache unavailable", slog.String("company_id", companyID.String()), slog.Any("error", err))
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.([]MonthBurn), nil
	}
	var buckets []MonthBurn
	if err := s.cache.FetchJSON(ctx, key, &buckets, loader); err != nil {
		return nil, err
	}
	return buckets, nil
}

// MonthlyBurn is the mean burn across observed months.
func (s *Service) MonthlyBurn(ctx context.Context, companyID uuid.UUID) (money.Money, error) {
	buckets, err := s.MonthBuckets(ctx, companyID)
	if err != nil {
		return 0, err
	}
	return MeanBurn(buckets), nil
}

// Runway divides cash by the monthly burn.
func (s *Service) Runway(ctx context.Context, companyID uuid.UUID, cash money.Money) (Runway, error) {
	burn, err := s.MonthlyBurn(ctx, companyID)
	if err != nil {
		return Runway{}, err
	}
	return ComputeRunway(cash, burn), nil
}

// BurnTrend compares the two most recent populated months.
func (s *Service) BurnTrend(ctx context.Context, companyID uuid.UUID) (BurnTrend, error) {
	buckets, err := s.MonthBuckets(ctx, companyID)
	if err != nil {
		return BurnTrend{}, err
	}
	return ComputeTrend(buckets), nil
}
