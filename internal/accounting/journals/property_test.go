package journals_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/accounting/journals"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/tax"
)

type postingSpec struct {
	Minor      int64
	Inflow     bool
	Category   string
	Rate       tax.Rate
	InterState bool
}

func postingSpecGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Int64Range(1, 50_000_000),
		gen.Bool(),
		gen.OneConstOf("rent", "payroll", "software", "sales", "subscription_revenue", "loan", "equipment", "", "unmapped_thing"),
		gen.OneConstOf(tax.RateExempt, tax.Rate5, tax.Rate12, tax.Rate18, tax.Rate28),
		gen.Bool(),
	).Map(func(v []interface{}) postingSpec {
		return postingSpec{
			Minor:      v[0].(int64),
			Inflow:     v[1].(bool),
			Category:   v[2].(string),
			Rate:       v[3].(tax.Rate),
			InterState: v[4].(bool),
		}
	})
}

func (s postingSpec) input(companyID uuid.UUID) journals.PostingInput {
	amount := money.FromMinor(s.Minor)
	if s.Inflow {
		amount = amount.Neg()
	}
	in := journals.PostingInput{
		CompanyID:     companyID,
		TransactionID: uuid.New(),
		Amount:        amount,
		Category:      s.Category,
		Description:   "generated",
		Date:          postedOn,
		InterState:    s.InterState,
	}
	if calc, err := tax.Calculate(amount.Abs(), s.Rate, s.InterState); err == nil && calc.TaxAmount.IsPositive() {
		in.TaxAmount = &calc.TaxAmount
	}
	return in
}

// cashMoved is the signed clearing movement of a posting: amount plus tax,
// negative for outflows.
func cashMoved(in journals.PostingInput) money.Money {
	moved := in.Amount.Abs()
	if in.TaxAmount != nil {
		moved += *in.TaxAmount
	}
	if in.Inflow() {
		return moved
	}
	return moved.Neg()
}

func TestLedgerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("every posting balances and the ledger stays intact", prop.ForAll(
		func(specs []postingSpec) bool {
			f := newFixture(t)
			ctx := context.Background()
			var cash money.Money
			for _, spec := range specs {
				in := spec.input(f.companyID)
				res, err := f.poster.PostTransaction(ctx, in)
				if err != nil {
					t.Logf("posting failed: %v", err)
					return false
				}
				debit, credit := res.Totals()
				if debit != credit || debit != cashMoved(in).Abs() {
					return false
				}
				cash += cashMoved(in)
			}
			if f.balance(t, accounts.CodeBankClearing) != cash {
				t.Logf("clearing %s, want %s", f.balance(t, accounts.CodeBankClearing), cash)
				return false
			}
			report, err := f.reports.CheckIntegrity(ctx, f.companyID, postedOn)
			if err != nil {
				return false
			}
			return report.TrialBalance.IsBalanced && report.Equation.IsBalanced && len(report.Divergences) == 0
		},
		gen.SliceOfN(25, postingSpecGen()),
	))

	properties.TestingRun(t)
}
