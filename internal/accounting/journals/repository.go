package journals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/platform/db"
	"github.com/odyssey-erp/runway/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	// WithTx runs fn in one unit of work. fn may be replayed on serialization
	// conflicts and must not keep state across attempts.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context, companyID, transactionID uuid.UUID) ([]JournalEntry, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// LockAccounts locks the named accounts of a company in id order and
	// returns those that exist, keyed by code.
	LockAccounts(ctx context.Context, companyID uuid.UUID, codes []string) (map[string]accounts.Account, error)
	EntriesByTransaction(ctx context.Context, companyID, transactionID uuid.UUID) ([]JournalEntry, error)
	// LinkPosting fails with shared.ErrAlreadyPosted when the transaction id
	// was posted before, or when the reversed transaction was already reversed.
	LinkPosting(ctx context.Context, link PostingLink) error
	InsertEntries(ctx context.Context, entries []JournalEntry) error
	ApplyBalanceDeltas(ctx context.Context, companyID uuid.UUID, deltas map[uuid.UUID]money.Money, at time.Time) error
}

const (
	postingsPKey         = "ledger_postings_pkey"
	postingsReversalOnce = "uq_ledger_postings_reversal_of"
)

type repository struct {
	db         *pgxpool.Pool
	maxRetries int
}

// NewRepository returns the Postgres-backed journal store. maxRetries bounds
// replays after serialization failures.
func NewRepository(pool *pgxpool.Pool, maxRetries int) Repository {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &repository{db: pool, maxRetries: maxRetries}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	opts := db.TxOptions{TxOptions: pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, MaxRetries: r.maxRetries}
	return db.WithTxOptions(ctx, r.db, opts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) ListEntries(ctx context.Context, companyID, transactionID uuid.UUID) ([]JournalEntry, error) {
	return queryEntries(ctx, r.db, companyID, transactionID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const entrySelect = `SELECT e.id, e.company_id, e.account_id, a.code, e.transaction_id, e.date, e.debit, e.credit, e.description, e.created_at
FROM journal_entries e JOIN accounts a ON a.id = e.account_id
WHERE e.company_id=$1 AND e.transaction_id=$2
ORDER BY e.id`

func queryEntries(ctx context.Context, q querier, companyID, transactionID uuid.UUID) ([]JournalEntry, error) {
	rows, err := q.Query(ctx, entrySelect, companyID, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var (
			e             JournalEntry
			debit, credit int64
		)
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.AccountID, &e.AccountCode, &e.TransactionID, &e.Date, &debit, &credit, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Debit = money.FromMinor(debit)
		e.Credit = money.FromMinor(credit)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockAccounts(ctx context.Context, companyID uuid.UUID, codes []string) (map[string]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accounts.Columns("")+` FROM accounts
WHERE company_id=$1 AND code = ANY($2)
ORDER BY id FOR UPDATE`, companyID, dedupe(codes))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]accounts.Account, len(codes))
	for rows.Next() {
		acc, err := accounts.ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[acc.Code] = acc
	}
	return out, rows.Err()
}

func (r *txRepository) EntriesByTransaction(ctx context.Context, companyID, transactionID uuid.UUID) ([]JournalEntry, error) {
	return queryEntries(ctx, r.tx, companyID, transactionID)
}

func (r *txRepository) LinkPosting(ctx context.Context, link PostingLink) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_postings (company_id, transaction_id, kind, reversal_of, entry_count, posted_at)
VALUES ($1,$2,$3,$4,$5,$6)`, link.CompanyID, link.TransactionID, string(link.Kind), link.ReversalOf, link.EntryCount, link.PostedAt)
	if err == nil {
		return nil
	}
	switch {
	case db.IsUniqueViolation(err, postingsPKey):
		return fmt.Errorf("transaction %s: %w", link.TransactionID, shared.ErrAlreadyPosted)
	case db.IsUniqueViolation(err, postingsReversalOnce):
		return fmt.Errorf("transaction %s already reversed: %w", *link.ReversalOf, shared.ErrAlreadyPosted)
	}
	return fmt.Errorf("journals: link posting: %w", err)
}

func (r *txRepository) InsertEntries(ctx context.Context, entries []JournalEntry) error {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.ID, e.CompanyID, e.AccountID, e.TransactionID, e.Date, e.Debit.Minor(), e.Credit.Minor(), e.Description, e.CreatedAt})
	}
	_, err := r.tx.CopyFrom(ctx, pgx.Identifier{"journal_entries"},
		[]string{"id", "company_id", "account_id", "transaction_id", "date", "debit", "credit", "description", "created_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("journals: insert entries: %w", err)
	}
	return nil
}

func (r *txRepository) ApplyBalanceDeltas(ctx context.Context, companyID uuid.UUID, deltas map[uuid.UUID]money.Money, at time.Time) error {
	batch := &pgx.Batch{}
	for id, delta := range deltas {
		if delta.IsZero() {
			continue
		}
		batch.Queue(`UPDATE accounts SET balance = balance + $3, updated_at=$4 WHERE company_id=$1 AND id=$2`, companyID, id, delta.Minor(), at)
	}
	if batch.Len() == 0 {
		return nil
	}
	results := r.tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return fmt.Errorf("journals: apply balance: %w", err)
		}
		if tag.RowsAffected() != 1 {
			_ = results.Close()
			return fmt.Errorf("journals: apply balance: account row missing for company %s", companyID)
		}
	}
	return results.Close()
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
