package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/platform/db"
	"github.com/odyssey-erp/runway/internal/shared"
)

// Repository reads and records source transactions.
type Repository interface {
	Insert(ctx context.Context, t Transaction) error
	Get(ctx context.Context, companyID, id uuid.UUID) (Transaction, error)
	List(ctx context.Context, companyID uuid.UUID, filter Filter) ([]Transaction, error)
}

const columns = `id, company_id, date, amount, category, description, tax_amount, inter_state, created_at`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the Postgres-backed transaction store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Insert(ctx context.Context, t Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	var taxAmount *int64
	if t.TaxAmount != nil {
		v := t.TaxAmount.Minor()
		taxAmount = &v
	}
	_, err := r.db.Exec(ctx, `INSERT INTO transactions (`+columns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.CompanyID, t.Date, t.Amount.Minor(), t.Category, t.Description, taxAmount, t.InterState, t.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return fmt.Errorf("transaction %s: %w", t.ID, shared.ErrAlreadyPosted)
		}
		return fmt.Errorf("transactions: insert: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, companyID, id uuid.UUID) (Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+columns+` FROM transactions WHERE company_id=$1 AND id=$2`, companyID, id)
	t, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.NotFound("transaction", id.String())
	}
	return t, err
}

func (r *repository) List(ctx context.Context, companyID uuid.UUID, filter Filter) ([]Transaction, error) {
	query := `SELECT ` + columns + ` FROM transactions WHERE company_id=$1`
	args := []any{companyID}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	query += ` ORDER BY date, id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scan(row pgx.Row) (Transaction, error) {
	var (
		t         Transaction
		amount    int64
		taxAmount *int64
	)
	if err := row.Scan(&t.ID, &t.CompanyID, &t.Date, &amount, &t.Category, &t.Description, &taxAmount, &t.InterState, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	t.Amount = money.FromMinor(amount)
	if taxAmount != nil {
		v := money.FromMinor(*taxAmount)
		t.TaxAmount = &v
	}
	return t, nil
}
