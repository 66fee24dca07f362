package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/efreitasn/stocksim/internal/clients/gemini"
	"github.com/efreitasn/stocksim/internal/clients/mlpredict"
	"github.com/efreitasn/stocksim/internal/domain"
	"github.com/efreitasn/stocksim/internal/market"
	"github.com/efreitasn/stocksim/internal/service"
	"github.com/efreitasn/stocksim/internal/store"
)

// fakeChatModel answers every message with reply, or fails with err.
type fakeChatModel struct {
	reply string
	err   error
}

func (f *fakeChatModel) Reply(ctx context.Context, history []domain.ChatTurn, message string) (string, error) {
	return f.reply, f.err
}

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router   http.Handler
	provider *market.Provider
	chat     *fakeChatModel
	ml       *httptest.Server
	mlHandle http.HandlerFunc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{chat: &fakeChatModel{reply: "Diversify."}}

	env.mlHandle = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"ticker":"TCS.NS","current_price":3500,"predicted_price":3525.5,"explanation":"Steady."}`))
	}
	env.ml = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mlHandle(w, r)
	}))
	t.Cleanup(env.ml.Close)

	st := store.NewMemoryStore()
	sr := domain.NewSymbolRegistry()
	env.provider = market.NewProvider(sr, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ml := mlpredict.NewClient(mlpredict.WithBaseURL(env.ml.URL), mlpredict.WithTimeout(time.Second))

	env.router = NewRouter(Services{
		Accounts:    service.NewAccountService(st, env.provider, 100000000, time.Second),
		Trades:      service.NewTradeService(st, sr, time.Second),
		Quotes:      service.NewQuoteService(env.provider),
		Predictions: service.NewPredictionService(ml, 0, logger),
		Chat:        service.NewChatService(env.chat, 10, time.Second, logger),
	}, logger)

	return env
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

// openAccount is a helper that opens an account via the API.
func (env *testEnv) openAccount(t *testing.T, userID string, balance float64) {
	t.Helper()
	rr := env.doJSON(t, "POST", "/accounts", map[string]any{"userId": userID, "balance": balance})
	if rr.Code != http.StatusCreated {
		t.Fatalf("open account %s: expected 201, got %d: %s", userID, rr.Code, rr.Body.String())
	}
}

// trade is a helper that posts a buy or sell.
func (env *testEnv) trade(t *testing.T, side, userID, symbol string, price float64, qty int64) *httptest.ResponseRecorder {
	t.Helper()
	return env.doJSON(t, "POST", "/"+side, map[string]any{
		"userId":   userID,
		"symbol":   symbol,
		"price":    price,
		"quantity": qty,
	})
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected application/json, got %s", ct)
	}
}

// --- Account Endpoints ---

func TestAccount_Open_Success(t *testing.T) {
	env := newTestEnv(t)
	rr := env.doJSON(t, "POST", "/accounts", map[string]any{"userId": "user1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["userId"] != "user1" {
		t.Fatalf("expected userId=user1, got %v", resp["userId"])
	}
	if resp["balance"] != 1000000.0 {
		t.Fatalf("expected default balance 1000000, got %v", resp["balance"])
	}
	createdAt, ok := resp["createdAt"].(string)
	if !ok {
		t.Fatal("createdAt should be a string")
	}
	if _, err := time.Parse(time.RFC3339, createdAt); err != nil {
		t.Fatalf("createdAt not RFC 3339: %v", err)
	}
}

func TestAccount_Open_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.openAccount(t, "user1", 1000)

	rr := env.doJSON(t, "POST", "/accounts", map[string]any{"userId": "user1"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["error"] != "account_already_exists" {
		t.Fatalf("expected error=account_already_exists, got %v", resp["error"])
	}
}

func TestAccount_Open_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty userId", map[string]any{"userId": ""}},
		{"negative balance", map[string]any{"userId": "u1", "balance": -1}},
		{"too many decimals", map[string]any{"userId": "u1", "balance": 1.999}},
		{"balance overflows paise", map[string]any{"userId": "u1", "balance": 1e17}},
		{"unknown field", map[string]any{"userId": "u1", "cash": 10}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.doJSON(t, "POST", "/accounts", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}

	rr := env.doJSON(t, "GET", "/portfolio?userId=u1", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("rejected opens must not create an account, got %d", rr.Code)
	}
}

func TestPortfolio_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/portfolio?userId=ghost", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["error"] != "account_not_found" {
		t.Fatalf("expected error=account_not_found, got %v", resp["error"])
	}
}

func TestPortfolio_EmptyHoldingsIsObject(t *testing.T) {
	env := newTestEnv(t)
	env.openAccount(t, "user1", 500)

	rr := env.doJSON(t, "GET", "/portfolio?userId=user1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"holdings":{}`) {
		t.Fatalf("expected empty holdings object, got %s", rr.Body.String())
	}
}

// --- Trade Endpoints ---

func TestBuy_Scenario(t *testing.T) {
	env := newTestEnv(t)
	env.openAccount(t, "user1", 100000)

	rr := env.trade(t, "buy", "user1", "TCS.NS", 3500, 10)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var buyResp map[string]any
	decodeJSON(t, rr, &buyResp)
	if buyResp["message"] != "Purchase successful" {
		t.Fatalf("unexpected message %v", buyResp["message"])
	}

	// Second lot at a different price moves the weighted average.
	rr = env.trade(t, "buy", "user1", "TCS.NS", 3600, 5)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.doJSON(t, "GET", "/portfolio?userId=user1", nil)
	var resp struct {
		Balance  float64 `json:"balance"`
		Holdings map[string]struct {
			Quantity    int64   `json:"quantity"`
			AvgBuyPrice float64 `json:"avgBuyPrice"`
		} `json:"holdings"`
	}
	decodeJSON(t, rr, &resp)

	if resp.Balance != 47000 {
		t.Fatalf("expected balance 47000, got %v", resp.Balance)
	}
	pos := resp.Holdings["TCS.NS"]
	if pos.Quantity != 15 {
		t.Fatalf("expected quantity 15, got %d", pos.Quantity)
	}
	if pos.AvgBuyPrice != 3533.33 {
		t.Fatalf("expected avgBuyPrice 3533.33, got %v", pos.AvgBuyPrice)
	}
}

func TestBuy_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.openAccount(t, "user1", 1000)

	rr := env.trade(t, "buy", "user1", "TCS.NS", 3500, 1)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["error"] != "insufficient_funds" {
		t.Fatalf("expected error=insufficient_funds, got %v", resp["error"])
	}

	rr = env.doJSON(t, "GET", "/transactions?userId=user1", nil)
	var txs struct {
		Transactions []map[string]any `json:"transactions"`
	}
	decodeJSON(t, rr, &txs)
	if len(txs.Transactions) != 0 {
		t.Fatalf("rejected buy recorded %d transactions", len(txs.Transactions))
	}
}

func TestBuy_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	rr := env.trade(t, "buy", "ghost", "TCS.NS", 100, 1)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestBuy_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	env.openAccount(t, "user1", 1000)

	tests := []struct {
		name string
		body string
	}{
		{"zero quantity", `{"userId":"user1","symbol":"TCS.NS","price":10,"quantity":0}`},
		{"fractional quantity", `{"userId":"user1","symbol":"TCS.NS","price":10,"quantity":1.5}`},
		{"negative price", `{"userId":"user1","symbol":"TCS.NS","price":-10,"quantity":1}`},
		{"bad symbol", `{"userId":"user1","symbol":"NOT VALID","price":10,"quantity":1}`},
		{"malformed", `{"userId":`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.doRaw(t, "POST", "/buy", "application/json", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestBuy_RequiresJSONContentType(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doRaw(t, "POST", "/buy", "text/plain", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["error"] != "invalid_request" {
		t.Fatalf("expected error=invalid_request, got %v", resp["error"])
	}
}

func TestSell_Flow(t *testing.T) {
	env := newTestEnv(t)
	env.openAccount(t, "user1", 100000)
	env.trade(t, "buy", "user1", "INFY.NS", 1500, 10)

	rr := env.trade(t, "sell", "user1", "INFY.NS", 1600, 11)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("oversell: expected 400, got %d", rr.Code)
	}

	rr = env.trade(t, "sell", "user1", "INFY.NS", 1600, 10)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var sellResp map[string]any
	decodeJSON(t, rr, &sellResp)
	if sellResp["message"] != "Sale successful" {
		t.Fatalf("unexpected message %v", sellResp["message"])
	}

	rr = env.doJSON(t, "GET", "/portfolio?userId=user1", nil)
	var resp struct {
		Balance  float64        `json:"balance"`
		Holdings map[string]any `json:"holdings"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Balance != 101000 {
		t.Fatalf("expected balance 101000, got %v", resp.Balance)
	}
	if _, ok := resp.Holdings["INFY.NS"]; ok {
		t.Fatal("fully sold position should be removed")
	}
}

func TestTransactions_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.openAccount(t, "user1", 100000)
	env.trade(t, "buy", "user1", "TCS.NS", 100, 1)
	time.Sleep(2 * time.Millisecond)
	env.trade(t, "buy", "user1", "SBIN.NS", 600, 2)
	time.Sleep(2 * time.Millisecond)
	env.trade(t, "sell", "user1", "TCS.NS", 110, 1)

	rr := env.doJSON(t, "GET", "/transactions?userId=user1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Transactions []struct {
			ID        string  `json:"id"`
			Type      string  `json:"type"`
			Symbol    string  `json:"symbol"`
			Price     float64 `json:"price"`
			Quantity  int64   `json:"quantity"`
			Timestamp string  `json:"timestamp"`
		} `json:"transactions"`
	}
	decodeJSON(t, rr, &resp)

	if len(resp.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(resp.Transactions))
	}
	first := resp.Transactions[0]
	if first.Type != "sell" || first.Symbol != "TCS.NS" || first.Price != 110 {
		t.Fatalf("expected newest sell first, got %+v", first)
	}
	if resp.Transactions[2].Symbol != "TCS.NS" || resp.Transactions[2].Type != "buy" {
		t.Fatalf("expected oldest buy last, got %+v", resp.Transactions[2])
	}
	for i := 1; i < len(resp.Transactions); i++ {
		prev, _ := time.Parse(time.RFC3339Nano, resp.Transactions[i-1].Timestamp)
		cur, _ := time.Parse(time.RFC3339Nano, resp.Transactions[i].Timestamp)
		if cur.After(prev) {
			t.Fatalf("transactions not newest first at %d", i)
		}
	}
}

func TestTransactions_UnknownUserEmpty(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/transactions?userId=ghost", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"transactions":[]`) {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestPortfolioSummary(t *testing.T) {
	env := newTestEnv(t)
	env.openAccount(t, "user1", 100000)
	env.trade(t, "buy", "user1", "TCS.NS", 3500, 10)

	rr := env.doJSON(t, "GET", "/portfolio/summary?userId=user1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Balance  float64 `json:"balance"`
		Invested float64 `json:"invested"`
		Holdings []struct {
			Symbol string `json:"symbol"`
			Priced bool   `json:"priced"`
		} `json:"holdings"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Balance != 65000 || resp.Invested != 35000 {
		t.Fatalf("unexpected summary: %+v", resp)
	}
	if len(resp.Holdings) != 1 || resp.Holdings[0].Symbol != "TCS.NS" || !resp.Holdings[0].Priced {
		t.Fatalf("unexpected holdings: %+v", resp.Holdings)
	}
}

// --- Quote Endpoints ---

func TestQuotes_Get(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/quotes/TCS.NS", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["symbol"] != "TCS.NS" || resp["companyName"] != "Tata Consultancy Services Ltd." {
		t.Fatalf("unexpected quote: %v", resp)
	}
	if _, ok := resp["percentChange"].(float64); !ok {
		t.Fatalf("percentChange missing: %v", resp)
	}

	rr = env.doJSON(t, "GET", "/quotes/INVALID.NS", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestQuotes_List(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/quotes?symbols=TCS.NS,INFY.NS", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Quotes []map[string]any `json:"quotes"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(resp.Quotes))
	}
}

// --- Prediction Endpoints ---

func TestPredict_Success(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "POST", "/predict", map[string]any{"ticker": "TCS.NS"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["predictedPrice"] != 3525.5 || resp["explanation"] != "Steady." {
		t.Fatalf("unexpected prediction: %v", resp)
	}
}

func TestPredict_UpstreamError(t *testing.T) {
	env := newTestEnv(t)
	env.mlHandle = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"model crashed"}`))
	}

	rr := env.doJSON(t, "POST", "/predict", map[string]any{"ticker": "TCS.NS"})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "model crashed") {
		t.Fatal("raw upstream error leaked to client")
	}
}

func TestPredict_Unavailable(t *testing.T) {
	env := newTestEnv(t)
	env.ml.Close()

	rr := env.doJSON(t, "POST", "/predict", map[string]any{"ticker": "TCS.NS"})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["error"] != "upstream_unavailable" {
		t.Fatalf("expected error=upstream_unavailable, got %v", resp["error"])
	}
}

func TestPredict_Health(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/predict/health", nil)
	var resp map[string]bool
	decodeJSON(t, rr, &resp)
	if !resp["healthy"] {
		t.Fatal("expected healthy")
	}
}

// --- Chat Endpoints ---

func TestChat_SendMessage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "POST", "/chat", map[string]any{
		"message": "How do I diversify?",
		"chatHistory": []map[string]any{
			{"id": "1", "role": "user", "content": "hi", "timestamp": "2026-01-01T00:00:00Z"},
			{"id": "2", "role": "assistant", "content": "hello", "timestamp": "2026-01-01T00:00:01Z"},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["success"] != true || resp["message"] != "Diversify." {
		t.Fatalf("unexpected reply: %v", resp)
	}
}

func TestChat_MissingMessage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "POST", "/chat", map[string]any{"chatHistory": []any{}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["success"] != false || resp["error"] != "Message is required" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestChat_NonJSONKeepsChatShape(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doRaw(t, "POST", "/chat", "text/plain", `{"message":"hi"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["success"] != false {
		t.Fatalf("expected success=false, got %v", resp)
	}
	if _, ok := resp["error"].(string); !ok {
		t.Fatalf("expected error string, got %v", resp)
	}
	if _, ok := resp["message"]; ok {
		t.Fatalf("chat failures must not use the error envelope: %v", resp)
	}
}

func TestChat_DownstreamFailureIsSafe(t *testing.T) {
	env := newTestEnv(t)
	env.chat.err = gemini.ErrQuotaExceeded

	rr := env.doJSON(t, "POST", "/chat", map[string]any{"message": "hi"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["success"] != false || resp["error"] != service.ChatQuotaMessage {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestChat_Welcome(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, "GET", "/chat", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Success        bool     `json:"success"`
		WelcomeMessage string   `json:"welcomeMessage"`
		QuickResponses []string `json:"quickResponses"`
	}
	decodeJSON(t, rr, &resp)
	if !resp.Success || !strings.Contains(resp.WelcomeMessage, "CHTR Assistant") || len(resp.QuickResponses) != 5 {
		t.Fatalf("unexpected welcome: %+v", resp)
	}
}
