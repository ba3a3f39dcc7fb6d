package analytics

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/runway/internal/money"
)

// Runway is the number of months the cash balance lasts at the current burn.
// Infinite is set when burn is zero or negative; Months is then meaningless.
type Runway struct {
	Months   float64
	Infinite bool
}

// InfiniteRunway is returned when the company is not burning cash.
var InfiniteRunway = Runway{Infinite: true}

// ComputeRunway divides cash by burn, rounded to two decimals.
func ComputeRunway(cash, burn money.Money) Runway {
	if !burn.IsPositive() {
		return InfiniteRunway
	}
	months, _ := cash.Decimal().Div(burn.Decimal()).Round(2).Float64()
	return Runway{Months: months}
}

// IsInfinite reports whether the runway is the infinite sentinel.
func (r Runway) IsInfinite() bool { return r.Infinite }

// String renders the runway for CLI output.
func (r Runway) String() string {
	if r.Infinite {
		return "infinite"
	}
	return decimal.NewFromFloat(r.Months).StringFixed(2) + " months"
}

type runwayJSON struct {
	Months   *float64 `json:"months"`
	Infinite bool     `json:"infinite"`
}

// MarshalJSON emits months as null for the infinite sentinel.
func (r Runway) MarshalJSON() ([]byte, error) {
	out := runwayJSON{Infinite: r.Infinite}
	if !r.Infinite {
		months := r.Months
		out.Months = &months
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a runway written by MarshalJSON.
func (r *Runway) UnmarshalJSON(data []byte) error {
	var in runwayJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Runway{Infinite: in.Infinite}
	if !in.Infinite && in.Months != nil {
		r.Months = *in.Months
	}
	return nil
}
