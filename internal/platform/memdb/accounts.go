package memdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/shared"
)

type accountStore struct{ s *Store }

func (a accountStore) InsertIfEmpty(_ context.Context, companyID uuid.UUID, seed []accounts.Account) (int, error) {
	c := a.s.company(companyID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.accounts) > 0 {
		return 0, nil
	}
	seen := make(map[string]struct{}, len(seed))
	for _, acc := range seed {
		if _, dup := seen[acc.Code]; dup {
			return 0, &shared.DuplicateAccountCodeError{CompanyID: companyID, Code: acc.Code}
		}
		seen[acc.Code] = struct{}{}
	}
	for _, acc := range seed {
		c.accounts[acc.ID] = acc
		c.byCode[acc.Code] = acc.ID
	}
	return len(seed), nil
}

func (a accountStore) Insert(_ context.Context, acc accounts.Account) (accounts.Account, error) {
	c := a.s.company(acc.CompanyID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byCode[acc.Code]; exists {
		return accounts.Account{}, &shared.DuplicateAccountCodeError{CompanyID: acc.CompanyID, Code: acc.Code}
	}
	c.accounts[acc.ID] = acc
	c.byCode[acc.Code] = acc.ID
	return acc, nil
}

func (a accountStore) List(_ context.Context, companyID uuid.UUID, filter accounts.Filter) ([]accounts.Account, error) {
	c := a.s.company(companyID)
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]accounts.Account, 0, len(c.accounts))
	for _, acc := range c.accounts {
		if filter.Match(acc) {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (a accountStore) GetByCode(_ context.Context, companyID uuid.UUID, code string) (accounts.Account, error) {
	c := a.s.company(companyID)
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byCode[code]
	if !ok {
		return accounts.Account{}, shared.NotFound("account", code)
	}
	return c.accounts[id], nil
}

func (a accountStore) Archive(_ context.Context, companyID uuid.UUID, code string, at time.Time) (accounts.Account, error) {
	c := a.s.company(companyID)
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byCode[code]
	if !ok {
		return accounts.Account{}, shared.NotFound("account", code)
	}
	acc := c.accounts[id]
	acc.IsActive = false
	acc.UpdatedAt = at
	c.accounts[id] = acc
	return acc, nil
}

func (a accountStore) ListCompanies(_ context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range a.s.companyIDs() {
		c := a.s.company(id)
		c.mu.RLock()
		n := len(c.accounts)
		c.mu.RUnlock()
		if n > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}
