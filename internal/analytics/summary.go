package analytics

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/money"
)

// Summary is the dashboard card: burn, runway and trend from one bucket load.
type Summary struct {
	CompanyID   uuid.UUID   `json:"company_id"`
	Cash        money.Money `json:"cash"`
	MonthlyBurn money.Money `json:"monthly_burn"`
	Runway      Runway      `json:"runway"`
	Trend       BurnTrend   `json:"trend"`
}

// Summary resolves every indicator against the same month buckets.
func (s *Service) Summary(ctx context.Context, companyID uuid.UUID, cash money.Money) (Summary, error) {
	buckets, err := s.MonthBuckets(ctx, companyID)
	if err != nil {
		return Summary{}, err
	}
	burn := MeanBurn(buckets)
	return Summary{
		CompanyID:   companyID,
		Cash:        cash,
		MonthlyBurn: burn,
		Runway:      ComputeRunway(cash, burn),
		Trend:       ComputeTrend(buckets),
	}, nil
}
