// Package tax computes GST splits. It holds no state.
package tax

import (
	"strconv"

	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
)

// Rate is a GST slab in whole percent.
type Rate int

const (
	RateExempt Rate = 0
	Rate5      Rate = 5
	Rate12     Rate = 12
	Rate18     Rate = 18
	Rate28     Rate = 28
)

// SupportedRates lists the slabs accepted by Calculate and ReverseExtract.
var SupportedRates = []Rate{RateExempt, Rate5, Rate12, Rate18, Rate28}

// Valid reports whether r is a supported slab.
func (r Rate) Valid() bool {
	for _, s := range SupportedRates {
		if r == s {
			return true
		}
	}
	return false
}

func (r Rate) String() string {
	return strconv.Itoa(int(r)) + "%"
}

// ParseRate reads "18" or "18%".
func ParseRate(s string) (Rate, error) {
	if n := len(s); n > 0 && s[n-1] == '%' {
		s = s[:n-1]
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, shared.Validation("rate", "%q is not a number", s)
	}
	r := Rate(v)
	if !r.Valid() {
		return 0, unsupported(r)
	}
	return r, nil
}

// Calculation is the GST breakdown for a base amount.
type Calculation struct {
	BaseAmount   money.Money `json:"base_amount"`
	Rate         Rate        `json:"rate"`
	CGST         money.Money `json:"cgst"`
	SGST         money.Money `json:"sgst"`
	IGST         money.Money `json:"igst"`
	TaxAmount    money.Money `json:"tax_amount"`
	TotalAmount  money.Money `json:"total_amount"`
	IsInterState bool        `json:"is_inter_state"`
}

// Calculate applies rate to base. Inter-state supplies carry IGST only;
// intra-state supplies split the tax between CGST and SGST.
func Calculate(base money.Money, rate Rate, interState bool) (Calculation, error) {
	if base.IsNegative() {
		return Calculation{}, shared.Validation("base_amount", "must not be negative, got %s", base)
	}
	if !rate.Valid() {
		return Calculation{}, unsupported(rate)
	}
	taxAmount := base.MulDiv(int64(rate), 100)
	calc := Calculation{
		BaseAmount:   base,
		Rate:         rate,
		TaxAmount:    taxAmount,
		TotalAmount:  base + taxAmount,
		IsInterState: interState,
	}
	if interState {
		calc.IGST = taxAmount
	} else {
		calc.CGST, calc.SGST = SplitIntraState(taxAmount)
	}
	return calc, nil
}

// SplitIntraState halves tax into CGST and SGST. Each half is rounded to a
// minor unit and the residual lands on SGST, so cgst+sgst == tax exactly.
func SplitIntraState(tax money.Money) (cgst, sgst money.Money) {
	cgst = tax.MulDiv(1, 2)
	sgst = tax.MulDiv(1, 2)
	sgst += tax - (cgst + sgst)
	return cgst, sgst
}

// Extraction is the result of carving GST out of a tax-inclusive total.
type Extraction struct {
	TotalAmount money.Money `json:"total_amount"`
	Rate        Rate        `json:"rate"`
	BaseAmount  money.Money `json:"base_amount"`
	TaxAmount   money.Money `json:"tax_amount"`
}

// ReverseExtract splits a tax-inclusive total into base and tax.
func ReverseExtract(total money.Money, rate Rate) (Extraction, error) {
	if total.IsNegative() {
		return Extraction{}, shared.Validation("total_amount", "must not be negative, got %s", total)
	}
	if !rate.Valid() {
		return Extraction{}, unsupported(rate)
	}
	base := total.MulDiv(100, int64(100+rate))
	return Extraction{
		TotalAmount: total,
		Rate:        rate,
		BaseAmount:  base,
		TaxAmount:   total - base,
	}, nil
}

func unsupported(r Rate) error {
	return shared.Validation("rate", "unsupported GST rate %d (want one of %v)", int(r), SupportedRates)
}
