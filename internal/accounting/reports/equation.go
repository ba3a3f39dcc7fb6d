package reports

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/money"
)

// EquationCheck compares Assets with Liabilities + Equity using the cached
// account balances. Revenue and expense accounts are never closed, so the
// check is Assets == Liabilities + Equity + (Revenue - Expenses).
// LiabilitiesAndEquity carries that right-hand side; Equity alone holds only
// the equity accounts.
type EquationCheck struct {
	CompanyID            uuid.UUID   `json:"company_id"`
	Assets               money.Money `json:"assets"`
	Liabilities          money.Money `json:"liabilities"`
	Equity               money.Money `json:"equity"`
	Revenue              money.Money `json:"revenue"`
	Expenses             money.Money `json:"expenses"`
	CurrentEarnings      money.Money `json:"current_earnings"`
	LiabilitiesAndEquity money.Money `json:"liabilities_and_equity"`
	Difference           money.Money `json:"difference"`
	IsBalanced           bool        `json:"is_balanced"`
}

// BuildEquationCheck sums cached balances by type, archived accounts included.
func BuildEquationCheck(balances []AccountBalance) EquationCheck {
	var check EquationCheck
	for _, acc := range balances {
		switch acc.Type {
		case accounts.AccountTypeAsset:
			check.Assets += acc.Cached
		case accounts.AccountTypeLiability:
			check.Liabilities += acc.Cached
		case accounts.AccountTypeEquity:
			check.Equity += acc.Cached
		case accounts.AccountTypeRevenue:
			check.Revenue += acc.Cached
		case accounts.AccountTypeExpense:
			check.Expenses += acc.Cached
		}
	}
	check.CurrentEarnings = check.Revenue - check.Expenses
	check.LiabilitiesAndEquity = check.Liabilities + check.Equity + check.CurrentEarnings
	check.Difference = (check.Assets - check.LiabilitiesAndEquity).Abs()
	check.IsBalanced = check.Difference < money.Tolerance
	return check
}
