package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/stocksim/internal/domain"
	"github.com/efreitasn/stocksim/internal/market"
	"github.com/efreitasn/stocksim/internal/store"
)

// OpenAccountRequest represents the input for opening an account.
// A nil Balance opens the account with the configured default.
type OpenAccountRequest struct {
	UserID  string
	Balance *float64
}

// HoldingValuation values one position at the current quote.
type HoldingValuation struct {
	Symbol       string
	Quantity     int64
	AvgBuyPrice  decimal.Decimal
	CurrentPrice decimal.Decimal
	Invested     decimal.Decimal
	MarketValue  decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
	Priced       bool // false when no quote was available and cost was used
}

// PortfolioSummary values a whole account. Amounts are rupees.
type PortfolioSummary struct {
	UserID       string
	Balance      decimal.Decimal
	Invested     decimal.Decimal
	CurrentValue decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
	TotalValue   decimal.Decimal
	Holdings     []HoldingValuation
}

// AccountService handles account creation and portfolio queries.
type AccountService struct {
	store          store.AccountStore
	quotes         *market.Provider
	initialBalance int64
	timeout        time.Duration
	now            func() time.Time
}

// NewAccountService creates a new AccountService. initialBalance is in
// paise.
func NewAccountService(st store.AccountStore, quotes *market.Provider, initialBalance int64, timeout time.Duration) *AccountService {
	return &AccountService{
		store:          st,
		quotes:         quotes,
		initialBalance: initialBalance,
		timeout:        timeout,
		now:            time.Now,
	}
}

// Open validates the request and creates an account with no holdings.
func (s *AccountService) Open(ctx context.Context, req OpenAccountRequest) (*domain.Account, error) {
	if err := validateUserID(req.UserID); err != nil {
		return nil, err
	}

	balance := s.initialBalance
	if req.Balance != nil {
		if *req.Balance < 0 {
			return nil, &domain.ValidationError{Message: "balance must be >= 0"}
		}
		paise, err := domain.RupeesToPaise(*req.Balance)
		if errors.Is(err, domain.ErrAmountTooLarge) {
			return nil, &domain.ValidationError{Message: "balance is too large"}
		}
		if err != nil {
			return nil, &domain.ValidationError{Message: "balance must have at most 2 decimal places"}
		}
		balance = paise
	}

	acct := domain.NewAccount(req.UserID, balance, s.now().UTC())
	_, err := storeCall(ctx, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.Create(ctx, acct)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// GetPortfolio returns the account's balance and holdings as stored.
func (s *AccountService) GetPortfolio(ctx context.Context, userID string) (*domain.Account, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return storeCall(ctx, s.timeout, func(ctx context.Context) (*domain.Account, error) {
		return s.store.Get(ctx, userID)
	})
}

// Summary values every holding at its current quote. Holdings without a
// quote are valued at cost.
func (s *AccountService) Summary(ctx context.Context, userID string) (*PortfolioSummary, error) {
	acct, err := s.GetPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	sum := &PortfolioSummary{
		UserID:       acct.UserID,
		Balance:      domain.PaiseToDecimal(acct.Balance),
		Invested:     decimal.Zero,
		CurrentValue: decimal.Zero,
		Holdings:     make([]HoldingValuation, 0, len(acct.Holdings)),
	}

	for symbol, pos := range acct.Holdings {
		v := HoldingValuation{
			Symbol:       symbol,
			Quantity:     pos.Quantity,
			AvgBuyPrice:  pos.AvgBuyPrice,
			CurrentPrice: pos.AvgBuyPrice,
			Invested:     pos.CostBasis(),
		}
		if q, err := s.quotes.Quote(symbol); err == nil {
			v.CurrentPrice = domain.PaiseToDecimal(q.Price)
			v.Priced = true
		}
		v.MarketValue = v.CurrentPrice.Mul(decimal.NewFromInt(pos.Quantity))
		v.PnL = v.MarketValue.Sub(v.Invested)
		if !v.Invested.IsZero() {
			v.PnLPercent = v.PnL.Div(v.Invested).Mul(hundred)
		}

		sum.Invested = sum.Invested.Add(v.Invested)
		sum.CurrentValue = sum.CurrentValue.Add(v.MarketValue)
		sum.Holdings = append(sum.Holdings, v)
	}

	sort.Slice(sum.Holdings, func(i, j int) bool {
		return sum.Holdings[i].Symbol < sum.Holdings[j].Symbol
	})

	sum.PnL = sum.CurrentValue.Sub(sum.Invested)
	if !sum.Invested.IsZero() {
		sum.PnLPercent = sum.PnL.Div(sum.Invested).Mul(hundred)
	}
	sum.TotalValue = sum.Balance.Add(sum.CurrentValue)
	return sum, nil
}
