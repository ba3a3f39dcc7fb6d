package reports

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/money"
)

// TrialBalanceEntry is one presented row.
type TrialBalanceEntry struct {
	AccountCode string               `json:"account_code"`
	AccountName string               `json:"account_name"`
	AccountType accounts.AccountType `json:"account_type"`
	Debit       money.Money          `json:"debit"`
	Credit      money.Money          `json:"credit"`
	// Balance is signed on the account's normal side.
	Balance money.Money `json:"balance"`
}

// TrialBalance is a point-in-time aggregation of the ledger. An imbalance is
// a finding for the operator, not an error.
type TrialBalance struct {
	CompanyID    uuid.UUID           `json:"company_id"`
	AsOf         time.Time           `json:"as_of"`
	Entries      []TrialBalanceEntry `json:"entries"`
	TotalDebits  money.Money         `json:"total_debits"`
	TotalCredits money.Money         `json:"total_credits"`
	Difference   money.Money         `json:"difference"`
	IsBalanced   bool                `json:"is_balanced"`
}

// BuildTrialBalance presents each account's net balance in the debit column
// for Asset/Expense accounts and the credit column for the others, flipping
// columns when the net runs against the normal side. Zero rows are dropped.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	result := TrialBalance{Entries: make([]TrialBalanceEntry, 0, len(balances))}
	for _, acc := range balances {
		net := acc.Net()
		if net.IsZero() {
			continue
		}
		row := TrialBalanceEntry{
			AccountCode: acc.Code,
			AccountName: acc.Name,
			AccountType: acc.Type,
			Balance:     net,
		}
		debitSide := acc.Type.IsDebitNormal()
		if net.IsNegative() {
			debitSide = !debitSide
		}
		if debitSide {
			row.Debit = net.Abs()
		} else {
			row.Credit = net.Abs()
		}
		result.Entries = append(result.Entries, row)
		result.TotalDebits += row.Debit
		result.TotalCredits += row.Credit
	}
	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].AccountCode < result.Entries[j].AccountCode
	})
	result.Difference = (result.TotalDebits - result.TotalCredits).Abs()
	result.IsBalanced = result.Difference < money.Tolerance
	return result
}
