// Package store persists accounts and their transaction logs.
package store

import (
	"context"

	"github.com/efreitasn/stocksim/internal/domain"
)

// SettleFunc computes the next account snapshot and the transaction to
// record from the current snapshot. It must not retain or mutate its
// argument, and may be called more than once by backends that retry on
// contention.
type SettleFunc func(domain.Account) (domain.Account, domain.Transaction, error)

// AccountStore is the persistence contract shared by every backend.
type AccountStore interface {
	// Create stores a new account. It returns
	// domain.ErrAccountAlreadyExists if the user already has one.
	Create(ctx context.Context, acct *domain.Account) error

	// Get returns a snapshot of the account. It returns
	// domain.ErrAccountNotFound if the user has no account.
	Get(ctx context.Context, userID string) (*domain.Account, error)

	// Settle atomically reads the account, applies fn, and persists the
	// new snapshot together with the transaction fn returned. Nothing is
	// written when fn returns an error.
	Settle(ctx context.Context, userID string, fn SettleFunc) (*domain.Transaction, error)

	// ListTransactions returns the account's transactions, newest first.
	// An unknown user yields an empty list.
	ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error)
}

var (
	_ AccountStore = (*MemoryStore)(nil)
	_ AccountStore = (*FirestoreStore)(nil)
)
