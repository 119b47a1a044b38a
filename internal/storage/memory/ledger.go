// Package memory implements the storage interfaces in process memory. It backs
// the "memory" storage mode and the engine tests.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/kitchen-rush/internal/domain/ledger"
)

var _ ledger.Store = (*LedgerStore)(nil)

type account struct {
	mu       sync.Mutex
	progress *ledger.Progress
	entries  []ledger.Entry
}

// LedgerStore keeps player progress and entries in memory. Each player has its
// own lock, so updates for different players never contend.
type LedgerStore struct {
	mu       sync.Mutex
	accounts map[string]*account
}

// NewLedgerStore returns an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{accounts: make(map[string]*account)}
}

func (s *LedgerStore) account(playerID string) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[playerID]
	return a, ok
}

// Create inserts the progress unless the player already has one.
func (s *LedgerStore) Create(_ context.Context, p *ledger.Progress) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[p.PlayerID]; ok {
		return false, nil
	}
	s.accounts[p.PlayerID] = &account{progress: p.Clone()}
	return true, nil
}

// Get returns a copy of the player's progress.
func (s *LedgerStore) Get(_ context.Context, playerID string) (*ledger.Progress, error) {
	a, ok := s.account(playerID)
	if !ok {
		return nil, ledger.ErrPlayerNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress.Clone(), nil
}

// Update applies fn under the player's lock and commits only on success.
func (s *LedgerStore) Update(_ context.Context, playerID string, fn func(p *ledger.Progress) ([]ledger.Entry, error)) (*ledger.Progress, error) {
	a, ok := s.account(playerID)
	if !ok {
		return nil, ledger.ErrPlayerNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	draft := a.progress.Clone()
	entries, err := fn(draft)
	if err != nil {
		return nil, err
	}
	a.progress = draft
	a.entries = append(a.entries, entries...)
	return draft.Clone(), nil
}

// Entries returns the player's entries, newest first.
func (s *LedgerStore) Entries(_ context.Context, playerID string, limit int) ([]ledger.Entry, error) {
	a, ok := s.account(playerID)
	if !ok {
		return nil, ledger.ErrPlayerNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ledger.Entry, 0, n)
	for i := len(a.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, a.entries[i])
	}
	return out, nil
}
