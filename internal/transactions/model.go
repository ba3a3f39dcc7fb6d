// Package transactions reads the source transaction stream written by the
// upstream producer. The ledger and analytics consume it; neither owns it.
package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
)

// Transaction is a source event. Amount is signed: positive is cash out,
// negative is cash in.
type Transaction struct {
	ID          uuid.UUID    `json:"id"`
	CompanyID   uuid.UUID    `json:"company_id"`
	Date        time.Time    `json:"date"`
	Amount      money.Money  `json:"amount"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	TaxAmount   *money.Money `json:"tax_amount,omitempty"`
	InterState  bool         `json:"inter_state"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Validate checks the fields every consumer relies on.
func (t Transaction) Validate() error {
	if t.ID == uuid.Nil {
		return shared.Validation("id", "required")
	}
	if t.CompanyID == uuid.Nil {
		return shared.Validation("company_id", "required")
	}
	if t.Date.IsZero() {
		return shared.Validation("date", "required")
	}
	if t.Amount.IsZero() {
		return shared.Validation("amount", "must not be zero")
	}
	return nil
}

// Filter narrows a listing. Zero bounds are open.
type Filter struct {
	From time.Time
	To   time.Time
}

// Match reports whether t falls inside the inclusive date range.
func (f Filter) Match(t Transaction) bool {
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	return true
}
