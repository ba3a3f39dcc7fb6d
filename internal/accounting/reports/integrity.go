package reports

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/money"
)

// Divergence is an account whose cached balance disagrees with its ledger.
type Divergence struct {
	AccountCode string      `json:"account_code"`
	AccountName string      `json:"account_name"`
	Cached      money.Money `json:"cached"`
	Ledger      money.Money `json:"ledger"`
	Delta       money.Money `json:"delta"`
}

// Reconcile lists accounts whose cached balance differs from the lifetime
// sum of their entries. Nothing is corrected.
func Reconcile(balances []AccountBalance) []Divergence {
	var out []Divergence
	for _, acc := range balances {
		ledger := acc.Ledger()
		if acc.Cached == ledger {
			continue
		}
		out = append(out, Divergence{
			AccountCode: acc.Code,
			AccountName: acc.Name,
			Cached:      acc.Cached,
			Ledger:      ledger,
			Delta:       acc.Cached - ledger,
		})
	}
	return out
}

// IntegrityReport bundles both verification paths for operators.
type IntegrityReport struct {
	CompanyID    uuid.UUID     `json:"company_id"`
	AsOf         time.Time     `json:"as_of"`
	CheckedAt    time.Time     `json:"checked_at"`
	Strict       bool          `json:"strict"`
	TrialBalance TrialBalance  `json:"trial_balance"`
	Equation     EquationCheck `json:"equation"`
	Divergences  []Divergence  `json:"divergences"`
	Findings     []string      `json:"findings"`
}

// Healthy reports a report without findings.
func (r IntegrityReport) Healthy() bool {
	return len(r.Findings) == 0
}

func buildIntegrityReport(companyID uuid.UUID, asOf time.Time, balances []AccountBalance) IntegrityReport {
	report := IntegrityReport{
		CompanyID:    companyID,
		AsOf:         asOf,
		TrialBalance: BuildTrialBalance(balances),
		Equation:     BuildEquationCheck(balances),
		Divergences:  Reconcile(balances),
	}
	report.TrialBalance.CompanyID = companyID
	report.TrialBalance.AsOf = asOf
	report.Equation.CompanyID = companyID
	if !report.TrialBalance.IsBalanced {
		report.Findings = append(report.Findings, fmt.Sprintf("trial balance off by %s", report.TrialBalance.Difference))
	}
	if !report.Equation.IsBalanced {
		report.Findings = append(report.Findings, fmt.Sprintf("accounting equation off by %s", report.Equation.Difference))
	}
	for _, d := range report.Divergences {
		report.Findings = append(report.Findings, fmt.Sprintf("account %s cached %s, ledger %s", d.AccountCode, d.Cached, d.Ledger))
	}
	return report
}
