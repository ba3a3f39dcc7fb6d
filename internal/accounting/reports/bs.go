package reports

import (
	"sort"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/money"
)

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	Balance money.Money `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    money.Money           `json:"total"`
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	CurrentEarnings           money.Money         `json:"current_earnings"`
	TotalLiabilitiesAndEquity money.Money         `json:"total_liabilities_and_equity"`
}

// BuildBalanceSheet aggregates as-of balances into assets, liabilities, and
// equity sections. Unclosed earnings are shown on their own equity line.
func BuildBalanceSheet(balances []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets"}
	liabilities := BalanceSheetSection{Label: "Liabilities"}
	equity := BalanceSheetSection{Label: "Equity"}
	var earnings money.Money

	for _, acc := range balances {
		net := acc.Net()
		row := BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: net}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			assets.Accounts = append(assets.Accounts, row)
			assets.Total += net
		case accounts.AccountTypeLiability:
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total += net
		case accounts.AccountTypeEquity:
			equity.Accounts = append(equity.Accounts, row)
			equity.Total += net
		case accounts.AccountTypeRevenue:
			earnings += net
		case accounts.AccountTypeExpense:
			earnings -= net
		}
	}
	if !earnings.IsZero() {
		equity.Accounts = append(equity.Accounts, BalanceSheetAccount{Code: "", Name: "Current Earnings", Balance: earnings})
		equity.Total += earnings
	}

	byCode := func(rows []BalanceSheetAccount) {
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Code == "" || rows[j].Code == "" {
				return rows[j].Code == "" && rows[i].Code != ""
			}
			return rows[i].Code < rows[j].Code
		})
	}
	byCode(assets.Accounts)
	byCode(liabilities.Accounts)
	byCode(equity.Accounts)

	return BalanceSheet{
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		CurrentEarnings:           earnings,
		TotalLiabilitiesAndEquity: liabilities.Total + equity.Total,
	}
}
