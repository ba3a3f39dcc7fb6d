package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/money"
)

var (
	// ErrNotFound indicates an unknown company, account or posting.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates input rejected before any work was done.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateAccountCode indicates the account code is taken within the company.
	ErrDuplicateAccountCode = errors.New("duplicate account code")
	// ErrUnbalanced indicates a posting whose debits and credits differ.
	ErrUnbalanced = errors.New("posting does not balance")
	// ErrAlreadyPosted indicates the source transaction already has ledger entries.
	ErrAlreadyPosted = errors.New("transaction already posted")
)

// ValidationError rejects a single field.
type ValidationError struct {
	Field  string
	Reason string
}

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateAccountCodeError reports a chart-of-accounts code collision.
type DuplicateAccountCodeError struct {
	CompanyID uuid.UUID
	Code      string
}

func (e *DuplicateAccountCodeError) Error() string {
	return fmt.Sprintf("account code %s already exists for company %s", e.Code, e.CompanyID)
}

func (e *DuplicateAccountCodeError) Unwrap() error { return ErrDuplicateAccountCode }

// UnbalancedPostingError is raised before persistence; such a posting is never written.
type UnbalancedPostingError struct {
	TransactionID uuid.UUID
	Debit         money.Money
	Credit        money.Money
}

func (e *UnbalancedPostingError) Error() string {
	return fmt.Sprintf("transaction %s does not balance: debit %s != credit %s", e.TransactionID, e.Debit, e.Credit)
}

func (e *UnbalancedPostingError) Unwrap() error { return ErrUnbalanced }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	Key    string
}

// NotFound builds a NotFoundError.
func NotFound(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DegradedPostingWarning is non-fatal: the posting went to a fallback account.
// It implements error so callers can log it uniformly, but it is never
// returned as the error of a successful posting.
type DegradedPostingWarning struct {
	Category     string `json:"category"`
	FallbackCode string `json:"fallback_code"`
	Reason       string `json:"reason"`
}

func (w DegradedPostingWarning) Error() string {
	return fmt.Sprintf("category %q posted to fallback account %s: %s", w.Category, w.FallbackCode, w.Reason)
}
