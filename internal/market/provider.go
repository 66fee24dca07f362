// Package market supplies mock NSE quotes for the simulator. Prices are
// seeded randomly per symbol and random-walked by a background Ticker.
package market

import (
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/efreitasn/stocksim/internal/domain"
)

// companyNames is the default quote universe.
var companyNames = map[string]string{
	"RELIANCE.NS":   "Reliance Industries Ltd.",
	"TCS.NS":        "Tata Consultancy Services Ltd.",
	"HDFCBANK.NS":   "HDFC Bank Ltd.",
	"INFY.NS":       "Infosys Ltd.",
	"ICICIBANK.NS":  "ICICI Bank Ltd.",
	"HINDUNILVR.NS": "Hindustan Unilever Ltd.",
	"SBIN.NS":       "State Bank of India",
	"BAJFINANCE.NS": "Bajaj Finance Ltd.",
	"BHARTIARTL.NS": "Bharti Airtel Ltd.",
	"KOTAKBANK.NS":  "Kotak Mahindra Bank Ltd.",
}

// DefaultSymbols returns the seeded universe in no particular order.
func DefaultSymbols() []string {
	out := make([]string, 0, len(companyNames))
	for s := range companyNames {
		out = append(out, s)
	}
	return out
}

// Quote is a point-in-time price for one symbol. Monetary fields are paise.
type Quote struct {
	Symbol        string
	CompanyName   string
	Price         int64
	PreviousClose int64
	UpdatedAt     time.Time
}

// Change returns the absolute move since the previous close.
func (q Quote) Change() int64 {
	return q.Price - q.PreviousClose
}

// PercentChange returns the move since the previous close in percent,
// rounded to 2 places.
func (q Quote) PercentChange() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	pct := float64(q.Change()) / float64(q.PreviousClose) * 100
	return math.Round(pct*100) / 100
}

// Provider is a thread-safe mock quote source.
type Provider struct {
	mu      sync.Mutex
	quotes  map[string]*Quote
	rng     *rand.Rand
	symbols *domain.SymbolRegistry
	now     func() time.Time
}

// NewProvider creates a Provider seeded with the default universe. Every
// seeded symbol is also registered in symbols.
func NewProvider(symbols *domain.SymbolRegistry, seed uint64) *Provider {
	p := &Provider{
		quotes:  make(map[string]*Quote),
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		symbols: symbols,
		now:     time.Now,
	}
	for _, s := range DefaultSymbols() {
		p.seedLocked(s)
	}
	for _, s := range symbols.List() {
		p.seedLocked(s)
	}
	return p
}

// Quote returns the current quote for symbol. Symbols outside the
// universe that still look like valid tickers are seeded on first use;
// symbols starting with INVALID, or malformed ones, return
// domain.ErrSymbolNotFound.
func (p *Provider) Quote(symbol string) (Quote, error) {
	if !ValidTicker(symbol) {
		return Quote{}, domain.ErrSymbolNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.quotes[symbol]
	if !ok {
		q = p.seedLocked(symbol)
	}
	return *q, nil
}

// Quotes returns quotes for each symbol in order. An empty list returns
// every known symbol.
func (p *Provider) Quotes(symbols []string) ([]Quote, error) {
	if len(symbols) == 0 {
		symbols = p.symbols.List()
	}
	out := make([]Quote, 0, len(symbols))
	for _, s := range symbols {
		q, err := p.Quote(s)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Tick moves every price by a random step of at most ±0.5%.
func (p *Provider) Tick(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, q := range p.quotes {
		step := (p.rng.Float64() - 0.5) * 0.01
		next := int64(math.Round(float64(q.Price) * (1 + step)))
		if next < 1 {
			next = 1
		}
		q.Price = next
		q.UpdatedAt = now
	}
}

// ValidTicker reports whether the mock feed can serve symbol.
func ValidTicker(symbol string) bool {
	return domain.ValidSymbol(symbol) && !strings.HasPrefix(symbol, "INVALID")
}

// seedLocked creates a quote with a base price between ₹500 and ₹3500 and
// a previous close within ±2.5% of it. Caller must hold p.mu.
func (p *Provider) seedLocked(symbol string) *Quote {
	if q, ok := p.quotes[symbol]; ok {
		return q
	}

	base := p.rng.Float64()*3000 + 500
	change := (p.rng.Float64() - 0.5) * base * 0.05

	name, ok := companyNames[symbol]
	if !ok {
		name = strings.SplitN(symbol, ".", 2)[0] + " Example Corp."
	}

	q := &Quote{
		Symbol:        symbol,
		CompanyName:   name,
		Price:         int64(math.Round((base + change) * 100)),
		PreviousClose: int64(math.Round(base * 100)),
		UpdatedAt:     p.now(),
	}
	p.quotes[symbol] = q
	p.symbols.Register(symbol)
	return q
}
