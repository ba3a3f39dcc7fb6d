package memdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/accounting/journals"
	"github.com/odyssey-erp/runway/internal/money"
	"github.com/odyssey-erp/runway/internal/shared"
)

type journalStore struct{ s *Store }

// WithTx stages every write and applies them only when fn succeeds. The
// company lock is taken on first use and held until commit or rollback.
func (j journalStore) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	tx := &stagedTx{store: j.s, held: make(map[uuid.UUID]*company)}
	defer tx.release()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (j journalStore) ListEntries(_ context.Context, companyID, transactionID uuid.UUID) ([]journals.JournalEntry, error) {
	c := j.s.company(companyID)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return entriesOf(c, transactionID), nil
}

func entriesOf(c *company, transactionID uuid.UUID) []journals.JournalEntry {
	var out []journals.JournalEntry
	for _, e := range c.entries {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out
}

type stagedTx struct {
	store   *Store
	held    map[uuid.UUID]*company
	links   []journals.PostingLink
	entries []journals.JournalEntry
	deltas  []stagedDelta
}

type stagedDelta struct {
	companyID uuid.UUID
	deltas    map[uuid.UUID]money.Money
	at        time.Time
}

func (t *stagedTx) lock(companyID uuid.UUID) *company {
	if c, ok := t.held[companyID]; ok {
		return c
	}
	c := t.store.company(companyID)
	c.mu.Lock()
	t.held[companyID] = c
	return c
}

func (t *stagedTx) release() {
	for id, c := range t.held {
		c.mu.Unlock()
		delete(t.held, id)
	}
}

func (t *stagedTx) LockAccounts(_ context.Context, companyID uuid.UUID, codes []string) (map[string]accounts.Account, error) {
	c := t.lock(companyID)
	out := make(map[string]accounts.Account, len(codes))
	for _, code := range codes {
		if id, ok := c.byCode[code]; ok {
			out[code] = c.accounts[id]
		}
	}
	return out, nil
}

func (t *stagedTx) EntriesByTransaction(_ context.Context, companyID, transactionID uuid.UUID) ([]journals.JournalEntry, error) {
	c := t.lock(companyID)
	return entriesOf(c, transactionID), nil
}

func (t *stagedTx) LinkPosting(_ context.Context, link journals.PostingLink) error {
	c := t.lock(link.CompanyID)
	if _, dup := c.postings[link.TransactionID]; dup {
		return fmt.Errorf("transaction %s: %w", link.TransactionID, shared.ErrAlreadyPosted)
	}
	for _, staged := range t.links {
		if staged.TransactionID == link.TransactionID {
			return fmt.Errorf("transaction %s: %w", link.TransactionID, shared.ErrAlreadyPosted)
		}
	}
	if link.ReversalOf != nil {
		if _, done := c.reversed[*link.ReversalOf]; done {
			return fmt.Errorf("transaction %s already reversed: %w", *link.ReversalOf, shared.ErrAlreadyPosted)
		}
	}
	t.links = append(t.links, link)
	return nil
}

func (t *stagedTx) InsertEntries(_ context.Context, entries []journals.JournalEntry) error {
	for _, e := range entries {
		t.lock(e.CompanyID)
	}
	t.entries = append(t.entries, entries...)
	return nil
}

func (t *stagedTx) ApplyBalanceDeltas(_ context.Context, companyID uuid.UUID, deltas map[uuid.UUID]money.Money, at time.Time) error {
	c := t.lock(companyID)
	for id := range deltas {
		if _, ok := c.accounts[id]; !ok {
			return fmt.Errorf("memdb: apply balance: account %s missing for company %s", id, companyID)
		}
	}
	copied := make(map[uuid.UUID]money.Money, len(deltas))
	for id, d := range deltas {
		copied[id] = d
	}
	t.deltas = append(t.deltas, stagedDelta{companyID: companyID, deltas: copied, at: at})
	return nil
}

func (t *stagedTx) commit() {
	for _, link := range t.links {
		c := t.held[link.CompanyID]
		c.postings[link.TransactionID] = link
		if link.ReversalOf != nil {
			c.reversed[*link.ReversalOf] = link.TransactionID
		}
	}
	for _, e := range t.entries {
		c := t.held[e.CompanyID]
		c.entries = append(c.entries, e)
	}
	for _, d := range t.deltas {
		c := t.held[d.companyID]
		for id, delta := range d.deltas {
			acc := c.accounts[id]
			acc.Balance += delta
			acc.UpdatedAt = d.at
			c.accounts[id] = acc
		}
	}
}
