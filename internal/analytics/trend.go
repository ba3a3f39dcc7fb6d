package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/runway/internal/money"
)

// TrendDirection classifies month-over-month burn movement.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

const (
	// TrendThresholdPct is the acceleration beyond which a trend is no longer stable.
	TrendThresholdPct = 5
	// TrendWindow is the number of trailing months returned for charting.
	TrendWindow = 6
)

// BurnTrend compares the latest populated month with the one before it.
type BurnTrend struct {
	Current         money.Money    `json:"current"`
	Previous        money.Money    `json:"previous"`
	Trend           TrendDirection `json:"trend"`
	AccelerationPct float64        `json:"acceleration_pct"`
	Months          []MonthBurn    `json:"months"`
}

// ComputeTrend derives the burn trend from ordered month buckets.
func ComputeTrend(buckets []MonthBurn) BurnTrend {
	trend := BurnTrend{Trend: TrendStable, Months: trailing(buckets, TrendWindow)}
	if len(buckets) == 0 {
		return trend
	}
	trend.Current = buckets[len(buckets)-1].Burn
	if len(buckets) < 2 {
		return trend
	}
	trend.Previous = buckets[len(buckets)-2].Burn
	if !trend.Previous.IsPositive() {
		return trend
	}

	pct := trend.Current.Decimal().Sub(trend.Previous.Decimal()).
		Mul(decimal.NewFromInt(100)).
		Div(trend.Previous.Decimal())
	threshold := decimal.NewFromInt(TrendThresholdPct)
	switch {
	case pct.GreaterThan(threshold):
		trend.Trend = TrendIncreasing
	case pct.LessThan(threshold.Neg()):
		trend.Trend = TrendDecreasing
	}
	trend.AccelerationPct, _ = pct.Round(2).Float64()
	return trend
}

func trailing(buckets []MonthBurn, n int) []MonthBurn {
	if len(buckets) > n {
		buckets = buckets[len(buckets)-n:]
	}
	out := make([]MonthBurn, len(buckets))
	copy(out, buckets)
	return out
}
