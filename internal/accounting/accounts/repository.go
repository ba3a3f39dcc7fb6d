package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/platform/db"
	"github.com/odyssey-erp/runway/internal/shared"
)

// Repository persists accounts.
type Repository interface {
	// InsertIfEmpty inserts seed atomically when the company has no accounts
	// and returns how many rows were written.
	InsertIfEmpty(ctx context.Context, companyID uuid.UUID, seed []Account) (int, error)
	Insert(ctx context.Context, acc Account) (Account, error)
	List(ctx context.Context, companyID uuid.UUID, filter Filter) ([]Account, error)
	GetByCode(ctx context.Context, companyID uuid.UUID, code string) (Account, error)
	Archive(ctx context.Context, companyID uuid.UUID, code string, at time.Time) (Account, error)
	ListCompanies(ctx context.Context) ([]uuid.UUID, error)
}

const uniqueCodeConstraint = "uq_accounts_company_code"

const accountColumns = `id, company_id, code, name, type, subtype, category, balance, is_active, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the Postgres-backed account store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) InsertIfEmpty(ctx context.Context, companyID uuid.UUID, seed []Account) (int, error) {
	created := 0
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		created = 0
		// Serializes concurrent seeds for the same company.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "coa:"+companyID.String()); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE company_id=$1)`, companyID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		batch := &pgx.Batch{}
		for _, a := range seed {
			batch.Queue(`INSERT INTO accounts (`+accountColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				a.ID, a.CompanyID, a.Code, a.Name, string(a.Type), nullString(a.Subtype), nullString(a.Category),
				a.Balance.Minor(), a.IsActive, a.CreatedAt, a.UpdatedAt)
		}
		results := tx.SendBatch(ctx, batch)
		for range seed {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return err
			}
			created++
		}
		return results.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("accounts: seed chart: %w", err)
	}
	return created, nil
}

func (r *repository) Insert(ctx context.Context, a Account) (Account, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.CompanyID, a.Code, a.Name, string(a.Type), nullString(a.Subtype), nullString(a.Category),
		a.Balance.Minor(), a.IsActive, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, uniqueCodeConstraint) {
			return Account{}, &shared.DuplicateAccountCodeError{CompanyID: a.CompanyID, Code: a.Code}
		}
		return Account{}, fmt.Errorf("accounts: insert: %w", err)
	}
	return a, nil
}

func (r *repository) List(ctx context.Context, companyID uuid.UUID, filter Filter) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE company_id=$1`
	args := []any{companyID}
	if !filter.IncludeArchived {
		query += ` AND is_active`
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		query += fmt.Sprintf(` AND type=$%d`, len(args))
	}
	query += ` ORDER BY code`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, companyID uuid.UUID, code string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code)
	a, err := ScanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFound("account", code)
	}
	return a, err
}

func (r *repository) Archive(ctx context.Context, companyID uuid.UUID, code string, at time.Time) (Account, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts SET is_active=false, updated_at=$3
WHERE company_id=$1 AND code=$2 RETURNING `+accountColumns, companyID, code, at)
	a, err := ScanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFound("account", code)
	}
	return a, err
}

func (r *repository) ListCompanies(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT company_id FROM accounts ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ScanAccount reads one row selected with the canonical account column list.
func ScanAccount(row pgx.Row) (Account, error) {
	var (
		a                 Account
		typ               string
		subtype, category *string
		balance           int64
	)
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &typ, &subtype, &category, &balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	a.Type = AccountType(typ)
	if subtype != nil {
		a.Subtype = *subtype
	}
	if category != nil {
		a.Category = *category
	}
	a.Balance = money.FromMinor(balance)
	return a, nil
}

// Columns is the canonical select list accepted by ScanAccount.
func Columns(alias string) string {
	if alias == "" {
		return accountColumns
	}
	p := alias + "."
	return p + "id, " + p + "company_id, " + p + "code, " + p + "name, " + p + "type, " + p + "subtype, " +
		p + "category, " + p + "balance, " + p + "is_active, " + p + "created_at, " + p + "updated_at"
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
