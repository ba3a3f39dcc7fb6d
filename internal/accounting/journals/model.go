package journals

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/mappings"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
	"github.com/odyssey-erp/runway/internal/tax"
	"github.com/odyssey-erp/runway/internal/transactions"
)

// PostingKind distinguishes original postings from reversals.
type PostingKind string

const (
	PostingKindPost    PostingKind = "POST"
	PostingKindReverse PostingKind = "REVERSE"
)

// JournalEntry is one debit or credit line. Entries are append-only.
type JournalEntry struct {
	ID            uuid.UUID   `json:"id"`
	CompanyID     uuid.UUID   `json:"company_id"`
	AccountID     uuid.UUID   `json:"account_id"`
	AccountCode   string      `json:"account_code"`
	TransactionID uuid.UUID   `json:"transaction_id"`
	Date          time.Time   `json:"date"`
	Debit         money.Money `json:"debit"`
	Credit        money.Money `json:"credit"`
	Description   string      `json:"description"`
	CreatedAt     time.Time   `json:"created_at"`
}

// PostingLink marks a transaction id as consumed by the ledger.
type PostingLink struct {
	CompanyID     uuid.UUID
	TransactionID uuid.UUID
	Kind          PostingKind
	ReversalOf    *uuid.UUID
	EntryCount    int
	PostedAt      time.Time
}

// PostingInput carries one source transaction into the ledger. Amount is
// signed: positive is cash out, negative is cash in. TaxAmount is GST on top
// of Amount and moves cash in the same direction.
type PostingInput struct {
	CompanyID     uuid.UUID
	TransactionID uuid.UUID
	Amount        money.Money
	Category      string `validate:"max=64"`
	Description   string `validate:"max=512"`
	Date          time.Time
	TaxAmount     *money.Money
	InterState    bool
}

// InputFromTransaction maps a stored source transaction onto a posting.
func InputFromTransaction(tx transactions.Transaction) PostingInput {
	return PostingInput{
		CompanyID:     tx.CompanyID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Category:      tx.Category,
		Description:   tx.Description,
		Date:          tx.Date,
		TaxAmount:     tx.TaxAmount,
		InterState:    tx.InterState,
	}
}

// Validate checks the amounts and identifiers.
func (in PostingInput) Validate() error {
	if in.CompanyID == uuid.Nil {
		return shared.Validation("company_id", "required")
	}
	if in.TransactionID == uuid.Nil {
		return shared.Validation("transaction_id", "required")
	}
	if in.Date.IsZero() {
		return shared.Validation("date", "required")
	}
	if in.Amount.IsZero() {
		return shared.Validation("amount", "must not be zero")
	}
	if in.TaxAmount != nil {
		if t := *in.TaxAmount; t.IsNegative() {
			return shared.Validation("tax_amount", "must not be negative, got %s", t)
		}
	}
	return shared.ValidateStruct(in)
}

// Inflow reports whether the transaction brings cash in.
func (in PostingInput) Inflow() bool {
	return in.Amount.IsNegative()
}

// ReverseInput requests a mirror posting of an existing transaction.
type ReverseInput struct {
	CompanyID     uuid.UUID
	TransactionID uuid.UUID
	// ReversalID identifies the correcting posting. A new id is generated when nil.
	ReversalID uuid.UUID
	Date       time.Time
	Memo       string
}

// TaxPosting is the GST breakdown booked with a posting.
type TaxPosting struct {
	Amount     money.Money `json:"amount"`
	CGST       money.Money `json:"cgst"`
	SGST       money.Money `json:"sgst"`
	IGST       money.Money `json:"igst"`
	InterState bool        `json:"inter_state"`
	// Input is true when the tax was paid out and booked as input credit.
	Input bool `json:"input"`
}

func newTaxPosting(amount money.Money, interState, input bool) TaxPosting {
	tp := TaxPosting{Amount: amount, InterState: interState, Input: input}
	if interState {
		tp.IGST = amount
	} else {
		tp.CGST, tp.SGST = tax.SplitIntraState(amount)
	}
	return tp
}

// PostingResult describes a committed posting.
type PostingResult struct {
	TransactionID uuid.UUID                       `json:"transaction_id"`
	Kind          PostingKind                     `json:"kind"`
	Entries       []JournalEntry                  `json:"entries"`
	Resolution    mappings.Resolution             `json:"resolution"`
	Tax           *TaxPosting                     `json:"tax,omitempty"`
	Warnings      []shared.DegradedPostingWarning `json:"warnings,omitempty"`
}

// Totals sums the debit and credit columns.
func (r PostingResult) Totals() (debit, credit money.Money) {
	return Totals(r.Entries)
}

// Totals sums the debit and credit columns of entries.
func Totals(entries []JournalEntry) (debit, credit money.Money) {
	for _, e := range entries {
		debit += e.Debit
		credit += e.Credit
	}
	return debit, credit
}
