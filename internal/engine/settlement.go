package engine

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/stocksim/internal/domain"
)

// TradeRequest is a validated-shape instruction to buy or sell a symbol
// at a caller-supplied execution price. The engine never fetches quotes.
type TradeRequest struct {
	Symbol   string
	Price    int64 // paise
	Quantity int64
}

// validate rejects non-positive inputs and costs that would overflow.
func (r TradeRequest) validate() (int64, error) {
	if r.Symbol == "" {
		return 0, &domain.ValidationError{Message: "symbol is required"}
	}
	if r.Price <= 0 {
		return 0, &domain.ValidationError{Message: "price must be > 0"}
	}
	if r.Quantity <= 0 {
		return 0, &domain.ValidationError{Message: "quantity must be > 0"}
	}
	if r.Quantity > math.MaxInt64/r.Price {
		return 0, &domain.ValidationError{Message: "trade value is too large"}
	}
	return r.Price * r.Quantity, nil
}

// SettleBuy applies a buy to an account snapshot. It returns the new
// snapshot and the buy transaction to record. On any error the returned
// account is the zero value and acct is left untouched.
//
//	newQuantity    = held + quantity
//	newAvgBuyPrice = (held × avgBuyPrice + cost) / newQuantity
func SettleBuy(acct domain.Account, req TradeRequest, now time.Time) (domain.Account, domain.Transaction, error) {
	cost, err := req.validate()
	if err != nil {
		return domain.Account{}, domain.Transaction{}, err
	}
	if acct.Balance < cost {
		return domain.Account{}, domain.Transaction{}, domain.ErrInsufficientFunds
	}

	next := acct.Clone()
	current, _ := next.Position(req.Symbol)

	newQty := current.Quantity + req.Quantity
	if newQty < current.Quantity {
		return domain.Account{}, domain.Transaction{}, &domain.ValidationError{Message: "position size is too large"}
	}
	invested := current.CostBasis().Add(domain.PaiseToDecimal(cost))

	next.Balance -= cost
	next.Holdings[req.Symbol] = domain.Position{
		Quantity:    newQty,
		AvgBuyPrice: invested.Div(decimal.NewFromInt(newQty)),
	}
	next.UpdatedAt = now

	return next, newTransaction(domain.TransactionBuy, req, now), nil
}

// SettleSell applies a sell to an account snapshot. The average buy
// price of the remaining shares is unchanged; a position sold down to
// zero is removed from the holdings.
func SettleSell(acct domain.Account, req TradeRequest, now time.Time) (domain.Account, domain.Transaction, error) {
	proceeds, err := req.validate()
	if err != nil {
		return domain.Account{}, domain.Transaction{}, err
	}

	current, held := acct.Position(req.Symbol)
	if !held || current.Quantity < req.Quantity {
		return domain.Account{}, domain.Transaction{}, domain.ErrInsufficientHoldings
	}
	if acct.Balance > math.MaxInt64-proceeds {
		return domain.Account{}, domain.Transaction{}, &domain.ValidationError{Message: "trade value is too large"}
	}

	next := acct.Clone()
	next.Balance += proceeds

	remaining := current.Quantity - req.Quantity
	if remaining == 0 {
		delete(next.Holdings, req.Symbol)
	} else {
		next.Holdings[req.Symbol] = domain.Position{
			Quantity:    remaining,
			AvgBuyPrice: current.AvgBuyPrice,
		}
	}
	next.UpdatedAt = now

	return next, newTransaction(domain.TransactionSell, req, now), nil
}

func newTransaction(typ domain.TransactionType, req TradeRequest, now time.Time) domain.Transaction {
	return domain.Transaction{
		ID:        uuid.New().String(),
		Type:      typ,
		Symbol:    req.Symbol,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Timestamp: now,
	}
}
