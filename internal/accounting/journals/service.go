package journals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/accounting/mappings"
	"github.com/odyssey-erp/runway/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops derived data of a company after its ledger changes.
type CacheInvalidator interface {
	Bump(ctx context.Context, companyID uuid.UUID) error
}

// PostingObserver receives posting outcomes for instrumentation. err is the
// error returned to the caller, nil on success.
type PostingObserver interface {
	ObservePosting(kind string, elapsed time.Duration, err error)
	ObserveDegraded(category, fallbackCode string)
}

// Poster turns source transactions into balanced journal entries.
type Poster struct {
	repo     Repository
	table    *mappings.Table
	audit    AuditPort
	cache    CacheInvalidator
	observer PostingObserver
	logger   *slog.Logger
	now      func() time.Time
	newID    func() uuid.UUID
}

// NewPoster constructs the ledger poster.
func NewPoster(repo Repository, table *mappings.Table, audit AuditPort, logger *slog.Logger) *Poster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poster{
		repo:   repo,
		table:  table,
		audit:  audit,
		logger: logger,
		now:    time.Now,
		newID:  func() uuid.UUID { return uuid.Must(uuid.NewV7()) },
	}
}

// WithNow overrides the clock for testing.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// WithCacheInvalidator registers the analytics cache to bump after commits.
func (p *Poster) WithCacheInvalidator(cache CacheInvalidator) {
	p.cache = cache
}

// WithObserver registers posting metrics.
func (p *Poster) WithObserver(observer PostingObserver) {
	p.observer = observer
}

// PostTransaction books one source transaction. Category resolution,
// balance check, entry inserts and cached balance updates commit together or
// not at all. A category that cannot be mapped is posted to the fallback
// account and reported in PostingResult.Warnings.
func (p *Poster) PostTransaction(ctx context.Context, input PostingInput) (result PostingResult, err error) {
	start := p.now()
	defer func() { p.observe(string(PostingKindPost), start, err) }()

	if err := input.Validate(); err != nil {
		return PostingResult{}, err
	}
	inflow := input.Inflow()

	var resolution mappings.Resolution
	var entries []JournalEntry
	var taxPosting *TaxPosting
	err = p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		resolution = p.table.Resolve(input.Category, input.Description, inflow)
		codes := []string{resolution.AccountCode, p.table.ClearingAccount, p.fallbackCode(inflow)}
		if input.TaxAmount != nil && input.TaxAmount.IsPositive() {
			codes = append(codes,
				p.table.TaxInput.CGST, p.table.TaxInput.SGST, p.table.TaxInput.IGST,
				p.table.TaxOutput.CGST, p.table.TaxOutput.SGST, p.table.TaxOutput.IGST)
		}
		locked, err := tx.LockAccounts(ctx, input.CompanyID, codes)
		if err != nil {
			return err
		}

		target, ok := locked[resolution.AccountCode]
		if !ok || !target.IsActive {
			if resolution.Degraded() {
				return shared.NotFound("active account", resolution.AccountCode)
			}
			reason := fmt.Sprintf("account %s is archived", resolution.AccountCode)
			if !ok {
				reason = fmt.Sprintf("account %s is not in the chart", resolution.AccountCode)
			}
			resolution = p.table.FallbackFor(resolution.Category, inflow, reason)
			target, ok = locked[resolution.AccountCode]
			if !ok || !target.IsActive {
				return shared.NotFound("active account", resolution.AccountCode)
			}
		}
		clearing, ok := locked[p.table.ClearingAccount]
		if !ok {
			return shared.NotFound("account", p.table.ClearingAccount)
		}

		plan := postingPlan{
			companyID:     input.CompanyID,
			transactionID: input.TransactionID,
			date:          input.Date,
			description:   input.Description,
			amount:        input.Amount.Abs(),
			outflow:       !inflow,
			target:        target,
			clearing:      clearing,
		}
		if input.TaxAmount != nil && input.TaxAmount.IsPositive() {
			side := p.table.TaxInput
			if inflow {
				side = p.table.TaxOutput
			}
			for i, code := range []string{side.CGST, side.SGST, side.IGST} {
				acc, ok := locked[code]
				if !ok {
					return shared.NotFound("account", code)
				}
				plan.taxAccounts[i] = acc
			}
			tp := newTaxPosting(*input.TaxAmount, input.InterState, !inflow)
			plan.tax = &tp
		}

		built := buildEntries(plan, p.newID, p.now().UTC())
		if err := CheckBalanced(input.TransactionID, built); err != nil {
			return err
		}
		if err := p.persist(ctx, tx, PostingLink{
			CompanyID:     input.CompanyID,
			TransactionID: input.TransactionID,
			Kind:          PostingKindPost,
			EntryCount:    len(built),
			PostedAt:      p.now().UTC(),
		}, built, locked); err != nil {
			return err
		}
		entries = built
		taxPosting = plan.tax
		return nil
	})
	if err != nil {
		return PostingResult{}, err
	}

	result = PostingResult{
		TransactionID: input.TransactionID,
		Kind:          PostingKindPost,
		Entries:       entries,
		Resolution:    resolution,
		Tax:           taxPosting,
	}
	if resolution.Degraded() {
		warning := shared.DegradedPostingWarning{
			Category:     resolution.Category,
			FallbackCode: resolution.AccountCode,
			Reason:       resolution.Reason,
		}
		result.Warnings = append(result.Warnings, warning)
		p.logger.Warn("posting degraded to fallback account",
			slog.String("company_id", input.CompanyID.String()),
			slog.String("transaction_id", input.TransactionID.String()),
			slog.String("category", warning.Category),
			slog.String("fallback_code", warning.FallbackCode),
			slog.String("reason", warning.Reason))
		if p.observer != nil {
			p.observer.ObserveDegraded(warning.Category, warning.FallbackCode)
		}
	}
	p.afterCommit(ctx, input.CompanyID, input.TransactionID, "journal.post", map[string]any{
		"category":      resolution.Category,
		"account_code":  resolution.AccountCode,
		"source":        string(resolution.Source),
		"amount":        input.Amount.String(),
		"entries":       len(entries),
		"table_version": p.table.Version,
	})
	return result, nil
}

// ReverseTransaction posts the mirror image of an earlier posting under a new
// transaction id. The original entries stay untouched. A posting can be
// reversed once.
func (p *Poster) ReverseTransaction(ctx context.Context, input ReverseInput) (result PostingResult, err error) {
	start := p.now()
	defer func() { p.observe(string(PostingKindReverse), start, err) }()

	if input.CompanyID == uuid.Nil {
		return PostingResult{}, shared.Validation("company_id", "required")
	}
	if input.TransactionID == uuid.Nil {
		return PostingResult{}, shared.Validation("transaction_id", "required")
	}
	if input.ReversalID == uuid.Nil {
		input.ReversalID = p.newID()
	}
	if input.ReversalID == input.TransactionID {
		return PostingResult{}, shared.Validation("reversal_id", "must differ from the reversed transaction")
	}
	if input.Date.IsZero() {
		input.Date = p.now().UTC().Truncate(24 * time.Hour)
	}
	description := "Reversal of " + input.TransactionID.String()
	if input.Memo != "" {
		description += ": " + input.Memo
	}

	var entries []JournalEntry
	err = p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.EntriesByTransaction(ctx, input.CompanyID, input.TransactionID)
		if err != nil {
			return err
		}
		if len(original) == 0 {
			return shared.NotFound("posting", input.TransactionID.String())
		}
		codes := make([]string, 0, len(original))
		for _, e := range original {
			codes = append(codes, e.AccountCode)
		}
		locked, err := tx.LockAccounts(ctx, input.CompanyID, codes)
		if err != nil {
			return err
		}
		built := mirrorEntries(original, input.ReversalID, input.Date, description, p.newID, p.now().UTC())
		if err := CheckBalanced(input.ReversalID, built); err != nil {
			return err
		}
		reversalOf := input.TransactionID
		if err := p.persist(ctx, tx, PostingLink{
			CompanyID:     input.CompanyID,
			TransactionID: input.ReversalID,
			Kind:          PostingKindReverse,
			ReversalOf:    &reversalOf,
			EntryCount:    len(built),
			PostedAt:      p.now().UTC(),
		}, built, locked); err != nil {
			return err
		}
		entries = built
		return nil
	})
	if err != nil {
		return PostingResult{}, err
	}
	p.afterCommit(ctx, input.CompanyID, input.ReversalID, "journal.reverse", map[string]any{
		"reversal_of": input.TransactionID.String(),
		"entries":     len(entries),
		"memo":        input.Memo,
	})
	return PostingResult{TransactionID: input.ReversalID, Kind: PostingKindReverse, Entries: entries}, nil
}

// Entries lists the journal lines of one transaction.
func (p *Poster) Entries(ctx context.Context, companyID, transactionID uuid.UUID) ([]JournalEntry, error) {
	entries, err := p.repo.ListEntries(ctx, companyID, transactionID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, shared.NotFound("posting", transactionID.String())
	}
	return entries, nil
}

func (p *Poster) persist(ctx context.Context, tx TxRepository, link PostingLink, entries []JournalEntry, locked map[string]accounts.Account) error {
	byID := make(map[uuid.UUID]accounts.Account, len(locked))
	for _, acc := range locked {
		byID[acc.ID] = acc
	}
	for _, e := range entries {
		if _, ok := byID[e.AccountID]; !ok {
			return shared.NotFound("account", e.AccountCode)
		}
	}
	if err := tx.LinkPosting(ctx, link); err != nil {
		return err
	}
	if err := tx.InsertEntries(ctx, entries); err != nil {
		return err
	}
	return tx.ApplyBalanceDeltas(ctx, link.CompanyID, balanceDeltas(entries, byID), link.PostedAt)
}

func (p *Poster) fallbackCode(inflow bool) string {
	if inflow {
		return p.table.Fallback.Income
	}
	return p.table.Fallback.Expense
}

func (p *Poster) afterCommit(ctx context.Context, companyID, transactionID uuid.UUID, action string, meta map[string]any) {
	if p.audit != nil {
		if err := p.audit.Record(ctx, shared.AuditLog{
			CompanyID: companyID,
			Actor:     "ledger",
			Action:    action,
			Entity:    "ledger_posting",
			EntityID:  transactionID.String(),
			Meta:      meta,
			At:        p.now().UTC(),
		}); err != nil {
			p.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
		}
	}
	if p.cache != nil {
		if err := p.cache.Bump(ctx, companyID); err != nil {
			p.logger.Warn("analytics cache bump failed", slog.String("company_id", companyID.String()), slog.Any("error", err))
		}
	}
}

func (p *Poster) observe(kind string, start time.Time, err error) {
	if p.observer == nil {
		return
	}
	p.observer.ObservePosting(kind, p.now().Sub(start), err)
}
