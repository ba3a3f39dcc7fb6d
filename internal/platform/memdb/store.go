// Package memdb is an in-process store implementing every repository port.
// Each company is guarded by its own lock: postings take it exclusively for
// the whole unit of work, reads share it.
package memdb

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/runway/internal/accounting/accounts"
	"github.com/odyssey-erp/runway/internal/accounting/journals"
	"github.com/odyssey-erp/runway/internal/shared"
	"github.com/odyssey-erp/runway/internal/transactions"
)

// Store holds all tenants in memory.
type Store struct {
	mu        sync.Mutex
	companies map[uuid.UUID]*company
	audit     []shared.AuditLog
	auditMu   sync.Mutex
}

type company struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]accounts.Account
	byCode       map[string]uuid.UUID
	entries      []journals.JournalEntry
	postings     map[uuid.UUID]journals.PostingLink
	reversed     map[uuid.UUID]uuid.UUID
	transactions map[uuid.UUID]transactions.Transaction
}

// New returns an empty store.
func New() *Store {
	return &Store{companies: make(map[uuid.UUID]*company)}
}

func (s *Store) company(id uuid.UUID) *company {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		c = &company{
			accounts:     make(map[uuid.UUID]accounts.Account),
			byCode:       make(map[string]uuid.UUID),
			postings:     make(map[uuid.UUID]journals.PostingLink),
			reversed:     make(map[uuid.UUID]uuid.UUID),
			transactions: make(map[uuid.UUID]transactions.Transaction),
		}
		s.companies[id] = c
	}
	return c
}

func (s *Store) companyIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.companies))
	for id := range s.companies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Accounts exposes the chart-of-accounts port.
func (s *Store) Accounts() accounts.Repository { return accountStore{s} }

// Journals exposes the ledger posting port.
func (s *Store) Journals() journals.Repository { return journalStore{s} }

// Transactions exposes the source transaction port.
func (s *Store) Transactions() transactions.Repository { return transactionStore{s} }

// Record implements the audit port.
func (s *Store) Record(_ context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.audit = append(s.audit, log)
	return nil
}

// AuditLogs returns a copy of the recorded audit trail.
func (s *Store) AuditLogs() []shared.AuditLog {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	out := make([]shared.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}
