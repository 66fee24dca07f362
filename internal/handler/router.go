package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/stocksim/internal/service"
)

// Services bundles the services the router exposes.
type Services struct {
	Accounts    *service.AccountService
	Trades      *service.TradeService
	Quotes      *service.QuoteService
	Predictions *service.PredictionService
	Chat        *service.ChatService
}

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware on the non-chat routes.
func NewRouter(svcs Services, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))

	// Create handlers.
	accountH := NewAccountHandler(svcs.Accounts, logger)
	tradeH := NewTradeHandler(svcs.Trades, logger)
	quoteH := NewQuoteHandler(svcs.Quotes, logger)
	predictionH := NewPredictionHandler(svcs.Predictions, logger)
	chatH := NewChatHandler(svcs.Chat, logger)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(contentTypeJSON)

		// Account routes.
		r.Post("/accounts", accountH.Open)
		r.Get("/portfolio", accountH.GetPortfolio)
		r.Get("/portfolio/summary", accountH.Summary)

		// Trade routes.
		r.Post("/buy", tradeH.Buy)
		r.Post("/sell", tradeH.Sell)
		r.Get("/transactions", tradeH.ListTransactions)

		// Quote routes.
		r.Get("/quotes", quoteH.List)
		r.Get("/quotes/{symbol}", quoteH.Get)

		// Prediction routes.
		r.Post("/predict", predictionH.Predict)
		r.Get("/predict/health", predictionH.Health)
	})

	// Chat answers every failure in its own {success, error} shape, so it
	// checks Content-Type itself.
	r.Post("/chat", chatH.SendMessage)
	r.Get("/chat", chatH.Welcome)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
