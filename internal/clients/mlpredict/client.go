// Package mlpredict is a client for the stock price prediction server.
package mlpredict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "http://localhost:5000"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// ErrUnreachable wraps failures to connect to the server or to get a
// response before the deadline.
var ErrUnreachable = errors.New("prediction server unreachable")

// APIError is returned when the server answers but reports a failure,
// either through a non-2xx status or a success=false body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("prediction server error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("prediction server error: status %d: %s", e.StatusCode, e.Message)
}

// Prediction is the server's answer for one ticker. Prices are rupees.
type Prediction struct {
	Success        bool    `json:"success"`
	Ticker         string  `json:"ticker"`
	CurrentPrice   float64 `json:"current_price"`
	PredictedPrice float64 `json:"predicted_price"`
	PriceChange    float64 `json:"price_change"`
	PercentChange  float64 `json:"percent_change"`
	Explanation    string  `json:"explanation"`
	PredictionDate string  `json:"prediction_date"`
	UsingMockData  bool    `json:"using_mock_data"`
	Error          string  `json:"error"`
}

// Client talks to the prediction server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a prediction client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Predict asks the server for a next-day price prediction.
func (c *Client) Predict(ctx context.Context, ticker string) (*Prediction, error) {
	body, err := json.Marshal(map[string]string{"ticker": ticker})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/predict", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var p Prediction
	decodeErr := json.NewDecoder(resp.Body).Decode(&p)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: p.Error}
	}
	if decodeErr != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "malformed response: " + decodeErr.Error()}
	}
	if !p.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: p.Error}
	}

	return &p, nil
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", ErrUnreachable, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn("prediction request failed",
			slog.String("path", path),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	c.logger.Debug("prediction request",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", elapsed),
	)
	return resp, nil
}
