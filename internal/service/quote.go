package service

import (
	"strings"

	"github.com/efreitasn/stocksim/internal/domain"
	"github.com/efreitasn/stocksim/internal/market"
)

// QuoteService serves mock market quotes.
type QuoteService struct {
	provider *market.Provider
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(provider *market.Provider) *QuoteService {
	return &QuoteService{provider: provider}
}

// Get returns the quote for a single symbol.
func (s *QuoteService) Get(symbol string) (market.Quote, error) {
	return s.provider.Quote(domain.NormalizeSymbol(symbol))
}

// List returns quotes for a comma-separated symbol list, or for every
// known symbol when the list is empty.
func (s *QuoteService) List(symbols string) ([]market.Quote, error) {
	var wanted []string
	for _, part := range strings.Split(symbols, ",") {
		if sym := domain.NormalizeSymbol(part); sym != "" {
			wanted = append(wanted, sym)
		}
	}
	return s.provider.Quotes(wanted)
}
