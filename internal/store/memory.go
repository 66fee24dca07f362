package store

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/efreitasn/stocksim/internal/domain"
)

// txLess orders the log by timestamp, breaking ties by ID.
func txLess(a, b domain.Transaction) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// accountEntry holds one account and its transaction log. mu serializes
// settlements for the account; the map lock is never held while it is.
type accountEntry struct {
	mu   sync.Mutex
	acct domain.Account
	log  *btree.BTreeG[domain.Transaction]
}

// MemoryStore is a thread-safe in-memory AccountStore, keyed by user ID.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*accountEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*accountEntry),
	}
}

// Create adds an account to the store.
func (s *MemoryStore) Create(ctx context.Context, acct *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.UserID]; exists {
		return domain.ErrAccountAlreadyExists
	}

	const degree = 16
	s.accounts[acct.UserID] = &accountEntry{
		acct: acct.Clone(),
		log:  btree.NewG[domain.Transaction](degree, txLess),
	}
	return nil
}

// Get returns a copy of the stored account.
func (s *MemoryStore) Get(ctx context.Context, userID string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, ok := s.entry(userID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct := e.acct.Clone()
	return &acct, nil
}

// Settle runs fn under the account's lock. The context is checked again
// after fn so a request that timed out while waiting never commits.
func (s *MemoryStore) Settle(ctx context.Context, userID string, fn SettleFunc) (*domain.Transaction, error) {
	e, ok := s.entry(userID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next, tx, err := fn(e.acct.Clone())
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next.UserID = e.acct.UserID
	next.CreatedAt = e.acct.CreatedAt
	next.Version = e.acct.Version + 1
	next.UpdatedAt = tx.Timestamp
	e.acct = next
	e.log.ReplaceOrInsert(tx)

	return &tx, nil
}

// ListTransactions returns the account's log in descending timestamp
// order.
func (s *MemoryStore) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, ok := s.entry(userID)
	if !ok {
		return []*domain.Transaction{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]*domain.Transaction, 0, e.log.Len())
	e.log.Descend(func(tx domain.Transaction) bool {
		result = append(result, &tx)
		return true
	})
	return result, nil
}

func (s *MemoryStore) entry(userID string) (*accountEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.accounts[userID]
	return e, ok
}
