package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/efreitasn/stocksim/internal/domain"
	"github.com/efreitasn/stocksim/internal/service"
)

// TradeHandler handles HTTP requests for buy, sell and transaction endpoints.
type TradeHandler struct {
	svc    *service.TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(svc *service.TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{svc: svc, logger: logger}
}

// tradeRequest is the JSON request body for POST /buy and POST /sell.
type tradeRequest struct {
	UserID   string  `json:"userId"`
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// transactionResponse is a single transaction log entry.
type transactionResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
	Timestamp string  `json:"timestamp"`
}

// tradeResponse is the JSON response for a settled trade.
type tradeResponse struct {
	Message     string              `json:"message"`
	Transaction transactionResponse `json:"transaction"`
}

// transactionListResponse is the JSON response for GET /transactions.
type transactionListResponse struct {
	Transactions []transactionResponse `json:"transactions"`
}

func toTransactionResponse(tx *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID,
		Type:      string(tx.Type),
		Symbol:    tx.Symbol,
		Price:     domain.PaiseToRupees(tx.Price),
		Quantity:  tx.Quantity,
		Timestamp: tx.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// Buy handles POST /buy.
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.svc.Buy, "Purchase successful")
}

// Sell handles POST /sell.
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.svc.Sell, "Sale successful")
}

func (h *TradeHandler) trade(
	w http.ResponseWriter,
	r *http.Request,
	settle func(context.Context, service.TradeRequest) (*domain.Transaction, error),
	message string,
) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	tx, err := settle(r.Context(), service.TradeRequest{
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, tradeResponse{
		Message:     message,
		Transaction: toTransactionResponse(tx),
	})
}

// ListTransactions handles GET /transactions?userId=.
func (h *TradeHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.ListTransactions(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	resp := transactionListResponse{Transactions: make([]transactionResponse, len(txs))}
	for i, tx := range txs {
		resp.Transactions[i] = toTransactionResponse(tx)
	}
	WriteJSON(w, http.StatusOK, resp)
}
