package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an account's holding in a single symbol.
type Position struct {
	Quantity    int64
	AvgBuyPrice decimal.Decimal // rupees, weighted over all buy lots
}

// CostBasis returns quantity × average buy price in rupees.
func (p Position) CostBasis() decimal.Decimal {
	return p.AvgBuyPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// Account is a user's virtual cash balance plus stock positions.
// The zero value is not usable; build accounts with NewAccount.
type Account struct {
	UserID    string
	Balance   int64               // paise
	Holdings  map[string]Position // symbol → position
	Version   int64               // bumped on every committed settlement
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates an account with the given opening balance and no
// holdings.
func NewAccount(userID string, balance int64, now time.Time) *Account {
	return &Account{
		UserID:    userID,
		Balance:   balance,
		Holdings:  make(map[string]Position),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the account. Positions are values, so
// copying the map is enough.
func (a Account) Clone() Account {
	holdings := make(map[string]Position, len(a.Holdings))
	for symbol, p := range a.Holdings {
		holdings[symbol] = p
	}
	a.Holdings = holdings
	return a
}

// Position returns the position for symbol, or the zero position
// (quantity 0, average price 0) if none is held.
func (a Account) Position(symbol string) (Position, bool) {
	p, ok := a.Holdings[symbol]
	if !ok {
		return Position{AvgBuyPrice: decimal.Zero}, false
	}
	return p, true
}
