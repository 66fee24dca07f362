package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/efreitasn/stocksim/internal/domain"
)

const (
	usersCollection        = "users"
	transactionsCollection = "transactions"
)

// userDoc is the users/{userId} document. Money is stored in rupees so
// the document stays readable by other clients of the same project.
type userDoc struct {
	UserID    string                `firestore:"userId"`
	Balance   float64               `firestore:"balance"`
	Holdings  map[string]holdingDoc `firestore:"holdings"`
	Version   int64                 `firestore:"version"`
	CreatedAt time.Time             `firestore:"createdAt"`
	UpdatedAt time.Time             `firestore:"updatedAt"`
}

type holdingDoc struct {
	Quantity    int64   `firestore:"quantity"`
	AvgBuyPrice float64 `firestore:"avgBuyPrice"`
}

// transactionDoc is the users/{userId}/transactions/{id} document.
type transactionDoc struct {
	ID        string    `firestore:"id"`
	Type      string    `firestore:"type"`
	Symbol    string    `firestore:"symbol"`
	Price     float64   `firestore:"price"`
	Quantity  int64     `firestore:"quantity"`
	Timestamp time.Time `firestore:"timestamp"`
}

func toUserDoc(a domain.Account) userDoc {
	holdings := make(map[string]holdingDoc, len(a.Holdings))
	for symbol, p := range a.Holdings {
		holdings[symbol] = holdingDoc{
			Quantity:    p.Quantity,
			AvgBuyPrice: p.AvgBuyPrice.InexactFloat64(),
		}
	}
	return userDoc{
		UserID:    a.UserID,
		Balance:   domain.PaiseToRupees(a.Balance),
		Holdings:  holdings,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (d userDoc) toAccount(userID string) domain.Account {
	holdings := make(map[string]domain.Position, len(d.Holdings))
	for symbol, h := range d.Holdings {
		holdings[symbol] = domain.Position{
			Quantity:    h.Quantity,
			AvgBuyPrice: decimal.NewFromFloat(h.AvgBuyPrice),
		}
	}
	return domain.Account{
		UserID:    userID,
		Balance:   domain.FloatToPaise(d.Balance),
		Holdings:  holdings,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toTransactionDoc(t domain.Transaction) transactionDoc {
	return transactionDoc{
		ID:        t.ID,
		Type:      string(t.Type),
		Symbol:    t.Symbol,
		Price:     domain.PaiseToRupees(t.Price),
		Quantity:  t.Quantity,
		Timestamp: t.Timestamp,
	}
}

func (d transactionDoc) toTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:        d.ID,
		Type:      domain.TransactionType(d.Type),
		Symbol:    d.Symbol,
		Price:     domain.FloatToPaise(d.Price),
		Quantity:  d.Quantity,
		Timestamp: d.Timestamp,
	}
}

// FirestoreStore is an AccountStore backed by Cloud Firestore. When
// FIRESTORE_EMULATOR_HOST is set the client talks to the emulator.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to the given project. credentialsFile is
// optional; without it application default credentials are used.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) userRef(userID string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(userID)
}

// Create writes a new user document. Firestore rejects the write with
// AlreadyExists if the document is present.
func (s *FirestoreStore) Create(ctx context.Context, acct *domain.Account) error {
	_, err := s.userRef(acct.UserID).Create(ctx, toUserDoc(*acct))
	if status.Code(err) == codes.AlreadyExists {
		return domain.ErrAccountAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// Get reads the user document.
func (s *FirestoreStore) Get(ctx context.Context, userID string) (*domain.Account, error) {
	snap, err := s.userRef(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	acct := doc.toAccount(userID)
	return &acct, nil
}

// Settle runs fn inside a Firestore transaction. Firestore retries the
// whole function on contention, so fn may run more than once.
func (s *FirestoreStore) Settle(ctx context.Context, userID string, fn SettleFunc) (*domain.Transaction, error) {
	ref := s.userRef(userID)

	var committed domain.Transaction
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return domain.ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("read account: %w", err)
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode account: %w", err)
		}
		cur := doc.toAccount(userID)

		next, t, err := fn(cur.Clone())
		if err != nil {
			return err
		}
		next.UserID = userID
		next.CreatedAt = cur.CreatedAt
		next.Version = cur.Version + 1
		next.UpdatedAt = t.Timestamp

		if err := tx.Set(ref, toUserDoc(next)); err != nil {
			return fmt.Errorf("write account: %w", err)
		}
		if err := tx.Create(ref.Collection(transactionsCollection).Doc(t.ID), toTransactionDoc(t)); err != nil {
			return fmt.Errorf("write transaction: %w", err)
		}
		committed = t
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	return &committed, nil
}

// ListTransactions queries the transactions subcollection newest first.
func (s *FirestoreStore) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	snaps, err := s.userRef(userID).Collection(transactionsCollection).
		OrderBy("timestamp", firestore.Desc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	result := make([]*domain.Transaction, 0, len(snaps))
	for _, snap := range snaps {
		var doc transactionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", snap.Ref.ID, err)
		}
		result = append(result, doc.toTransaction())
	}
	return result, nil
}
