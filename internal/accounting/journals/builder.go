package journals

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
)

// postingPlan holds the resolved accounts of a single posting.
type postingPlan struct {
	companyID     uuid.UUID
	transactionID uuid.UUID
	date          time.Time
	description   string
	amount        money.Money
	outflow       bool
	target        accounts.Account
	clearing      accounts.Account
	tax           *TaxPosting
	// taxAccounts is indexed cgst, sgst, igst.
	taxAccounts [3]accounts.Account
}

// buildEntries turns a plan into journal lines. The side follows the cash
// direction: an outflow debits the target and credits clearing, an inflow
// does the reverse. Tax is a second balanced set between the GST accounts and
// clearing. Zero lines are omitted.
func buildEntries(p postingPlan, newID func() uuid.UUID, now time.Time) []JournalEntry {
	entries := make([]JournalEntry, 0, 6)
	add := func(acc accounts.Account, amount money.Money, debit bool) {
		if amount.IsZero() {
			return
		}
		e := JournalEntry{
			ID:            newID(),
			CompanyID:     p.companyID,
			AccountID:     acc.ID,
			AccountCode:   acc.Code,
			TransactionID: p.transactionID,
			Date:          p.date,
			Description:   p.description,
			CreatedAt:     now,
		}
		if debit {
			e.Debit = amount
		} else {
			e.Credit = amount
		}
		entries = append(entries, e)
	}
	add(p.target, p.amount, p.outflow)
	add(p.clearing, p.amount, !p.outflow)
	if p.tax != nil {
		add(p.taxAccounts[0], p.tax.CGST, p.outflow)
		add(p.taxAccounts[1], p.tax.SGST, p.outflow)
		add(p.taxAccounts[2], p.tax.IGST, p.outflow)
		add(p.clearing, p.tax.Amount, !p.outflow)
	}
	return entries
}

// mirrorEntries builds the reversal of original under a new transaction id.
func mirrorEntries(original []JournalEntry, reversalID uuid.UUID, date time.Time, description string, newID func() uuid.UUID, now time.Time) []JournalEntry {
	out := make([]JournalEntry, 0, len(original))
	for _, e := range original {
		out = append(out, JournalEntry{
			ID:            newID(),
			CompanyID:     e.CompanyID,
			AccountID:     e.AccountID,
			AccountCode:   e.AccountCode,
			TransactionID: reversalID,
			Date:          date,
			Debit:         e.Credit,
			Credit:        e.Debit,
			Description:   description,
			CreatedAt:     now,
		})
	}
	return out
}

// CheckBalanced rejects entry sets whose debits and credits differ, or that
// carry a line with both or neither column set.
func CheckBalanced(transactionID uuid.UUID, entries []JournalEntry) error {
	if len(entries) < 2 {
		return shared.Validation("entries", "a posting needs at least two lines, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			return shared.Validation("entries", "negative amount on account %s", e.AccountCode)
		}
		if e.Debit.IsZero() == e.Credit.IsZero() {
			return shared.Validation("entries", "account %s must carry exactly one of debit or credit", e.AccountCode)
		}
	}
	debit, credit := Totals(entries)
	if debit != credit {
		return &shared.UnbalancedPostingError{TransactionID: transactionID, Debit: debit, Credit: credit}
	}
	return nil
}

// balanceDeltas folds entries into per-account cached balance changes.
func balanceDeltas(entries []JournalEntry, byID map[uuid.UUID]accounts.Account) map[uuid.UUID]money.Money {
	deltas := make(map[uuid.UUID]money.Money, len(entries))
	for _, e := range entries {
		acc := byID[e.AccountID]
		deltas[e.AccountID] += acc.Type.SignedDelta(e.Debit, e.Credit)
	}
	return deltas
}
