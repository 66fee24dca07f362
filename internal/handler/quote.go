package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/stocksim/internal/domain"
	"github.com/efreitasn/stocksim/internal/market"
	"github.com/efreitasn/stocksim/internal/service"
)

// QuoteHandler handles HTTP requests for market quotes.
type QuoteHandler struct {
	svc    *service.QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(svc *service.QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{svc: svc, logger: logger}
}

// quoteResponse is the JSON representation of a quote.
type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	CompanyName   string  `json:"companyName"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percentChange"`
	UpdatedAt     string  `json:"updatedAt"`
}

// quoteListResponse is the JSON response for GET /quotes.
type quoteListResponse struct {
	Quotes []quoteResponse `json:"quotes"`
}

func toQuoteResponse(q market.Quote) quoteResponse {
	return quoteResponse{
		Symbol:        q.Symbol,
		CompanyName:   q.CompanyName,
		Price:         domain.PaiseToRupees(q.Price),
		Change:        domain.PaiseToRupees(q.Change()),
		PercentChange: q.PercentChange(),
		UpdatedAt:     q.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Get handles GET /quotes/{symbol}.
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Get(chi.URLParam(r, "symbol"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, toQuoteResponse(q))
}

// List handles GET /quotes?symbols=A,B.
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.svc.List(r.URL.Query().Get("symbols"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	resp := quoteListResponse{Quotes: make([]quoteResponse, len(quotes))}
	for i, q := range quotes {
		resp.Quotes[i] = toQuoteResponse(q)
	}
	WriteJSON(w, http.StatusOK, resp)
}
