package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountTypes lists every type in balance-sheet order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// IsDebitNormal reports whether the type increases on the debit side.
func (t AccountType) IsDebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// SignedDelta converts a debit/credit pair into a change of the cached
// balance, which is kept on the account's normal side.
func (t AccountType) SignedDelta(debit, credit money.Money) money.Money {
	if t.IsDebitNormal() {
		return debit - credit
	}
	return credit - debit
}

// ParseAccountType accepts any case ("asset", "Asset", "ASSET").
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", shared.Validation("type", "unknown account type %q", s)
	}
	return t, nil
}

// Account models a chart of accounts node scoped to one company.
type Account struct {
	ID        uuid.UUID   `json:"id"`
	CompanyID uuid.UUID   `json:"company_id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	Subtype   string      `json:"subtype,omitempty"`
	Category  string      `json:"category,omitempty"`
	Balance   money.Money `json:"balance"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Filter narrows GetAccounts.
type Filter struct {
	Type            *AccountType
	IncludeArchived bool
}

// Match reports whether a passes the filter.
func (f Filter) Match(a Account) bool {
	if !f.IncludeArchived && !a.IsActive {
		return false
	}
	if f.Type != nil && a.Type != *f.Type {
		return false
	}
	return true
}

// CreateAccountInput is the payload for an explicit account creation.
type CreateAccountInput struct {
	CompanyID uuid.UUID
	Code      string      `validate:"required,max=16,numeric"`
	Name      string      `validate:"required,max=128"`
	Type      AccountType `validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Subtype   string      `validate:"max=64"`
	Category  string      `validate:"max=64"`
}
