package domain

import "time"

// TransactionType distinguishes buys from sells.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// Transaction is an immutable record of one settled trade.
type Transaction struct {
	ID        string
	Type      TransactionType
	Symbol    string
	Price     int64 // paise
	Quantity  int64
	Timestamp time.Time
}
