package reports

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
)

// AccountBalance models a general ledger account with aggregated balances.
// Debit and Credit sum the entries dated on or before the cutoff; the
// Lifetime pair sums every entry. Cached is the balance stored on the account.
type AccountBalance struct {
	AccountID      uuid.UUID
	Code           string
	Name           string
	Type           accounts.AccountType
	IsActive       bool
	Debit          money.Money
	Credit         money.Money
	LifetimeDebit  money.Money
	LifetimeCredit money.Money
	Cached         money.Money
}

// Net is the as-of balance on the account's normal side.
func (a AccountBalance) Net() money.Money {
	return a.Type.SignedDelta(a.Debit, a.Credit)
}

// Ledger is the lifetime balance derived from journal entries.
func (a AccountBalance) Ledger() money.Money {
	return a.Type.SignedDelta(a.LifetimeDebit, a.LifetimeCredit)
}

// BalanceQuery selects what a repository snapshot covers.
type BalanceQuery struct {
	CompanyID uuid.UUID
	// AsOf is an inclusive calendar date; zero means no cutoff.
	AsOf time.Time
	Mode shared.ReadMode
}

// DateOf drops the time of day and keeps the calendar date of t.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OnOrBefore reports whether t falls on or before the calendar date of asOf.
func OnOrBefore(t, asOf time.Time) bool {
	return !DateOf(t).After(DateOf(asOf))
}

// ReadOption tunes a read.
type ReadOption func(*readOptions)

type readOptions struct {
	mode shared.ReadMode
}

// ReadSerializable requests a strictly consistent read instead of the
// default snapshot, which may lag concurrent postings.
func ReadSerializable() ReadOption {
	return func(o *readOptions) { o.mode = shared.ReadSerializable }
}

func applyReadOptions(opts []ReadOption) readOptions {
	o := readOptions{mode: shared.ReadSnapshot}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
