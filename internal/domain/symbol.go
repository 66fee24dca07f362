package domain

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

var symbolRegex = regexp.MustCompile(`^[A-Z0-9&_-]{1,20}(\.(NS|BO))?$`)

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidSymbol reports whether symbol looks like an NSE/BSE ticker,
// e.g. TCS.NS or RELIANCE.BO.
func ValidSymbol(symbol string) bool {
	return symbolRegex.MatchString(symbol)
}

// SymbolRegistry tracks known stock symbols in a thread-safe manner.
// Symbols are seeded from the market universe and registered again
// whenever a trade settles.
type SymbolRegistry struct {
	mu      sync.RWMutex
	symbols map[string]bool
}

// NewSymbolRegistry creates a SymbolRegistry holding the given symbols.
func NewSymbolRegistry(symbols ...string) *SymbolRegistry {
	r := &SymbolRegistry{
		symbols: make(map[string]bool, len(symbols)),
	}
	for _, s := range symbols {
		r.symbols[s] = true
	}
	return r
}

// Register adds a symbol to the registry. Safe for concurrent use.
func (r *SymbolRegistry) Register(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbols[symbol] = true
}

// List returns all registered symbols in lexical order.
func (r *SymbolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
