// Package gemini wraps the Google Gen AI SDK as a trading-assistant chat
// model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/efreitasn/stocksim/internal/domain"
)

const (
	DefaultModel     = "gemini-1.5-flash"
	DefaultRateLimit = 2 // requests per second
)

// SystemPrompt frames every conversation.
const SystemPrompt = `You are CHTR Assistant, a helpful AI trading companion for the CHTR virtual stock trading platform focused on the Indian market (NSE/BSE).

You help users with:
- Trading strategies and market analysis
- Understanding CHTR platform features such as virtual trading, portfolio tracking and price predictions
- Investment concepts explained simply
- Technical and fundamental analysis basics
- Risk management and portfolio diversification

Guidelines:
- Be concise, friendly and educational.
- Remind users that CHTR uses virtual money and nothing you say is financial advice.
- Never promise returns or recommend specific real-money trades.
- Prices on CHTR are in Indian Rupees (₹).`

// Error categories reported by Reply. The underlying SDK error is
// wrapped alongside.
var (
	ErrModelNotFound = errors.New("chat model not found")
	ErrInvalidAPIKey = errors.New("chat api key rejected")
	ErrQuotaExceeded = errors.New("chat quota exceeded")
	ErrNetwork       = errors.New("chat service unreachable")
	ErrEmptyResponse = errors.New("chat model returned no text")
)

// Client generates assistant replies with a Gemini model.
type Client struct {
	client  *genai.Client
	model   string
	baseURL string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
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

// NewClient creates a Gemini chat client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:   DefaultModel,
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions.BaseURL = c.baseURL
	}

	genaiClient, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = genaiClient

	return c, nil
}

func generationConfig() *genai.GenerateContentConfig {
	block := genai.HarmBlockThresholdBlockMediumAndAbove
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		TopP:              genai.Ptr[float32](0.9),
		TopK:              genai.Ptr[float32](40),
		MaxOutputTokens:   1024,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: block},
			{Category: genai.HarmCategoryHateSpeech, Threshold: block},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: block},
			{Category: genai.HarmCategoryDangerousContent, Threshold: block},
		},
	}
}

// contents maps the conversation to Gemini contents, ending with message.
func contents(history []domain.ChatTurn, message string) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == domain.ChatRoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(turn.Content, role))
	}
	return append(out, genai.NewContentFromText(message, genai.RoleUser))
}

// Reply generates the assistant's answer to message given the prior turns.
func (c *Client) Reply(ctx context.Context, history []domain.ChatTurn, message string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %v", ErrQuotaExceeded, err)
	}

	c.logger.Debug("generating chat reply", slog.String("model", c.model), slog.Int("history", len(history)))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents(history, message), generationConfig())
	if err != nil {
		return "", classify(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// classify tags an SDK error with one of the package's categories.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrModelNotFound, err)
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Status == "RESOURCE_EXHAUSTED", strings.Contains(msg, "quota"):
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden, strings.Contains(msg, "api key"):
			return fmt.Errorf("%w: %w", ErrInvalidAPIKey, err)
		}
		return fmt.Errorf("generate content: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return fmt.Errorf("generate content: %w", err)
}
