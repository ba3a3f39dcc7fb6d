package memdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/reports"
)

// Reports exposes the balance snapshot port. Both read modes take the
// company read lock, so every snapshot is consistent with committed postings.
func (s *Store) Reports() reports.Repository { return reportStore{s} }

type reportStore struct{ s *Store }

func (r reportStore) Balances(_ context.Context, q reports.BalanceQuery) ([]reports.AccountBalance, error) {
	c := r.s.company(q.CompanyID)
	c.mu.RLock()
	defer c.mu.RUnlock()
	byID := make(map[uuid.UUID]*reports.AccountBalance, len(c.accounts))
	out := make([]reports.AccountBalance, 0, len(c.accounts))
	for _, acc := range c.accounts {
		out = append(out, reports.AccountBalance{
			AccountID: acc.ID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			IsActive:  acc.IsActive,
			Cached:    acc.Balance,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	for i := range out {
		byID[out[i].AccountID] = &out[i]
	}
	for _, e := range c.entries {
		b, ok := byID[e.AccountID]
		if !ok {
			continue
		}
		b.LifetimeDebit += e.Debit
		b.LifetimeCredit += e.Credit
		if q.AsOf.IsZero() || reports.OnOrBefore(e.Date, q.AsOf) {
			b.Debit += e.Debit
			b.Credit += e.Credit
		}
	}
	return out, nil
}
