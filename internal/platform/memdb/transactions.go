package memdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/shared"
	"github.com/odyssey-erp/runway/internal/transactions"
)

type transactionStore struct{ s *Store }

func (t transactionStore) Insert(_ context.Context, tx transactions.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	c := t.s.company(tx.CompanyID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.transactions[tx.ID]; dup {
		return fmt.Errorf("transaction %s: %w", tx.ID, shared.ErrAlreadyPosted)
	}
	c.transactions[tx.ID] = tx
	return nil
}

func (t transactionStore) Get(_ context.Context, companyID, id uuid.UUID) (transactions.Transaction, error) {
	c := t.s.company(companyID)
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.transactions[id]
	if !ok {
		return transactions.Transaction{}, shared.NotFound("transaction", id.String())
	}
	return tx, nil
}

func (t transactionStore) List(_ context.Context, companyID uuid.UUID, filter transactions.Filter) ([]transactions.Transaction, error) {
	c := t.s.company(companyID)
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]transactions.Transaction, 0, len(c.transactions))
	for _, tx := range c.transactions {
		if filter.Match(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}
