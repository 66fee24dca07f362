package handler

import (
	"log/slog"
	"net/http"

	"github.com/efreitasn/stocksim/internal/service"
)

// PredictionHandler handles HTTP requests for price predictions.
type PredictionHandler struct {
	svc    *service.PredictionService
	logger *slog.Logger
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(svc *service.PredictionService, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{svc: svc, logger: logger}
}

// predictRequest is the JSON request body for POST /predict.
type predictRequest struct {
	Ticker string `json:"ticker"`
}

// predictResponse is the JSON response for POST /predict.
type predictResponse struct {
	Ticker         string  `json:"ticker"`
	CurrentPrice   float64 `json:"currentPrice"`
	PredictedPrice float64 `json:"predictedPrice"`
	PercentChange  float64 `json:"percentChange"`
	Explanation    string  `json:"explanation"`
	UsingMockData  bool    `json:"usingMockData"`
}

// Predict handles POST /predict.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.svc.Predict(r.Context(), req.Ticker)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, predictResponse{
		Ticker:         res.Ticker,
		CurrentPrice:   res.CurrentPrice,
		PredictedPrice: res.PredictedPrice,
		PercentChange:  res.PercentChange,
		Explanation:    res.Explanation,
		UsingMockData:  res.UsingMockData,
	})
}

// Health handles GET /predict/health.
func (h *PredictionHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]bool{"healthy": h.svc.Health(r.Context())})
}
