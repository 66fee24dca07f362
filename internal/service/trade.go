package service

import (
	"context"
	"errors"
	"time"

	"github.com/efreitasn/stocksim/internal/domain"
	"github.com/efreitasn/stocksim/internal/engine"
	"github.com/efreitasn/stocksim/internal/store"
)

// TradeRequest represents the input for a buy or sell. Price is the
// execution price in rupees chosen by the caller.
type TradeRequest struct {
	UserID   string
	Symbol   string
	Price    float64
	Quantity int64
}

// TradeService settles buys and sells against the account store.
type TradeService struct {
	store   store.AccountStore
	symbols *domain.SymbolRegistry
	timeout time.Duration
	now     func() time.Time
}

// NewTradeService creates a new TradeService.
func NewTradeService(st store.AccountStore, symbols *domain.SymbolRegistry, timeout time.Duration) *TradeService {
	return &TradeService{
		store:   st,
		symbols: symbols,
		timeout: timeout,
		now:     time.Now,
	}
}

type settleStep func(domain.Account, engine.TradeRequest, time.Time) (domain.Account, domain.Transaction, error)

// Buy validates the request and settles a purchase.
func (s *TradeService) Buy(ctx context.Context, req TradeRequest) (*domain.Transaction, error) {
	return s.settle(ctx, req, engine.SettleBuy)
}

// Sell validates the request and settles a sale.
func (s *TradeService) Sell(ctx context.Context, req TradeRequest) (*domain.Transaction, error) {
	return s.settle(ctx, req, engine.SettleSell)
}

func (s *TradeService) settle(ctx context.Context, req TradeRequest, step settleStep) (*domain.Transaction, error) {
	tr, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	tx, err := storeCall(ctx, s.timeout, func(ctx context.Context) (*domain.Transaction, error) {
		return s.store.Settle(ctx, req.UserID, func(acct domain.Account) (domain.Account, domain.Transaction, error) {
			return step(acct, tr, s.now().UTC())
		})
	})
	if err != nil {
		return nil, err
	}

	s.symbols.Register(tr.Symbol)
	return tx, nil
}

func (s *TradeService) validate(req TradeRequest) (engine.TradeRequest, error) {
	if err := validateUserID(req.UserID); err != nil {
		return engine.TradeRequest{}, err
	}

	symbol := domain.NormalizeSymbol(req.Symbol)
	if !domain.ValidSymbol(symbol) {
		return engine.TradeRequest{}, &domain.ValidationError{
			Message: "symbol must be an NSE/BSE ticker such as TCS.NS",
		}
	}
	if req.Price <= 0 {
		return engine.TradeRequest{}, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	price, err := domain.RupeesToPaise(req.Price)
	if errors.Is(err, domain.ErrAmountTooLarge) {
		return engine.TradeRequest{}, &domain.ValidationError{Message: "price is too large"}
	}
	if err != nil {
		return engine.TradeRequest{}, &domain.ValidationError{Message: "price must have at most 2 decimal places"}
	}
	if req.Quantity <= 0 {
		return engine.TradeRequest{}, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	return engine.TradeRequest{Symbol: symbol, Price: price, Quantity: req.Quantity}, nil
}

// ListTransactions returns the user's transactions, newest first. Unknown
// users get an empty list.
func (s *TradeService) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return storeCall(ctx, s.timeout, func(ctx context.Context) ([]*domain.Transaction, error) {
		return s.store.ListTransactions(ctx, userID)
	})
}
