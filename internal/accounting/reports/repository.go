package reports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/platform/db"
	"github.com/odyssey-erp/runway/internal/shared"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the Postgres-backed balance reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const balancesSQL = `SELECT a.id, a.code, a.name, a.type, a.is_active, a.balance,
	COALESCE(SUM(e.debit) FILTER (WHERE $2::date IS NULL OR e.date <= $2::date), 0)::bigint,
	COALESCE(SUM(e.credit) FILTER (WHERE $2::date IS NULL OR e.date <= $2::date), 0)::bigint,
	COALESCE(SUM(e.debit), 0)::bigint,
	COALESCE(SUM(e.credit), 0)::bigint
FROM accounts a
LEFT JOIN journal_entries e ON e.account_id = a.id
WHERE a.company_id = $1
GROUP BY a.id
ORDER BY a.code`

func (r *repository) Balances(ctx context.Context, q BalanceQuery) ([]AccountBalance, error) {
	opts := db.ReadOnlySnapshot
	if q.Mode == shared.ReadSerializable {
		opts = db.ReadOnlySerializable
	}
	var asOf any
	if !q.AsOf.IsZero() {
		asOf = DateOf(q.AsOf)
	}
	var out []AccountBalance
	err := db.WithTxOptions(ctx, r.db, opts, func(tx pgx.Tx) error {
		out = out[:0]
		rows, err := tx.Query(ctx, balancesSQL, q.CompanyID, asOf)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				b                               AccountBalance
				typ                             string
				cached, d, c, lifeD, lifeCredit int64
			)
			if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &typ, &b.IsActive, &cached, &d, &c, &lifeD, &lifeCredit); err != nil {
				return err
			}
			b.Type = accounts.AccountType(typ)
			b.Cached = money.FromMinor(cached)
			b.Debit = money.FromMinor(d)
			b.Credit = money.FromMinor(c)
			b.LifetimeDebit = money.FromMinor(lifeD)
			b.LifetimeCredit = money.FromMinor(lifeCredit)
			out = append(out, b)
		}
		return rows.Err()
	})
	return out, err
}
