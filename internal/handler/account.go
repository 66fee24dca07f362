package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/efreitasn/stocksim/internal/domain"
	"github.com/efreitasn/stocksim/internal/service"
)

// AccountHandler handles HTTP requests for account and portfolio endpoints.
type AccountHandler struct {
	svc    *service.AccountService
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger}
}

// openAccountRequest is the JSON request body for POST /accounts.
type openAccountRequest struct {
	UserID  string   `json:"userId"`
	Balance *float64 `json:"balance"`
}

// positionResponse is a single holding, keyed by symbol in its parent.
type positionResponse struct {
	Quantity    int64   `json:"quantity"`
	AvgBuyPrice float64 `json:"avgBuyPrice"`
}

// portfolioResponse is the JSON response for GET /portfolio.
type portfolioResponse struct {
	Balance  float64                     `json:"balance"`
	Holdings map[string]positionResponse `json:"holdings"`
}

// accountResponse is the JSON response for POST /accounts (201 Created).
type accountResponse struct {
	UserID    string                      `json:"userId"`
	Balance   float64                     `json:"balance"`
	Holdings  map[string]positionResponse `json:"holdings"`
	CreatedAt string                      `json:"createdAt"`
}

// holdingValuationResponse is one row of the portfolio summary.
type holdingValuationResponse struct {
	Symbol       string  `json:"symbol"`
	Quantity     int64   `json:"quantity"`
	AvgBuyPrice  float64 `json:"avgBuyPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	Invested     float64 `json:"invested"`
	MarketValue  float64 `json:"marketValue"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnlPercent"`
	Priced       bool    `json:"priced"`
}

// summaryResponse is the JSON response for GET /portfolio/summary.
type summaryResponse struct {
	UserID       string                     `json:"userId"`
	Balance      float64                    `json:"balance"`
	Invested     float64                    `json:"invested"`
	CurrentValue float64                    `json:"currentValue"`
	PnL          float64                    `json:"pnl"`
	PnLPercent   float64                    `json:"pnlPercent"`
	TotalValue   float64                    `json:"totalValue"`
	Holdings     []holdingValuationResponse `json:"holdings"`
}

func toPositionsResponse(holdings map[string]domain.Position) map[string]positionResponse {
	out := make(map[string]positionResponse, len(holdings))
	for symbol, p := range holdings {
		out[symbol] = positionResponse{
			Quantity:    p.Quantity,
			AvgBuyPrice: domain.RoundedRupees(p.AvgBuyPrice),
		}
	}
	return out
}

// Open handles POST /accounts.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	acct, err := h.svc.Open(r.Context(), service.OpenAccountRequest{
		UserID:  req.UserID,
		Balance: req.Balance,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, accountResponse{
		UserID:    acct.UserID,
		Balance:   domain.PaiseToRupees(acct.Balance),
		Holdings:  toPositionsResponse(acct.Holdings),
		CreatedAt: acct.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// GetPortfolio handles GET /portfolio?userId=.
func (h *AccountHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.GetPortfolio(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		Balance:  domain.PaiseToRupees(acct.Balance),
		Holdings: toPositionsResponse(acct.Holdings),
	})
}

// Summary handles GET /portfolio/summary?userId=.
func (h *AccountHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	holdings := make([]holdingValuationResponse, len(sum.Holdings))
	for i, v := range sum.Holdings {
		holdings[i] = holdingValuationResponse{
			Symbol:       v.Symbol,
			Quantity:     v.Quantity,
			AvgBuyPrice:  domain.RoundedRupees(v.AvgBuyPrice),
			CurrentPrice: domain.RoundedRupees(v.CurrentPrice),
			Invested:     domain.RoundedRupees(v.Invested),
			MarketValue:  domain.RoundedRupees(v.MarketValue),
			PnL:          domain.RoundedRupees(v.PnL),
			PnLPercent:   domain.RoundedRupees(v.PnLPercent),
			Priced:       v.Priced,
		}
	}

	WriteJSON(w, http.StatusOK, summaryResponse{
		UserID:       sum.UserID,
		Balance:      domain.RoundedRupees(sum.Balance),
		Invested:     domain.RoundedRupees(sum.Invested),
		CurrentValue: domain.RoundedRupees(sum.CurrentValue),
		PnL:          domain.RoundedRupees(sum.PnL),
		PnLPercent:   domain.RoundedRupees(sum.PnLPercent),
		TotalValue:   domain.RoundedRupees(sum.TotalValue),
		Holdings:     holdings,
	})
}
