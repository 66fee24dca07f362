package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/efreitasn/stocksim/internal/clients/gemini"
	"github.com/efreitasn/stocksim/internal/domain"
)

// Fallback texts shown instead of raw chat failures.
const (
	ChatModelUnavailableMessage = "The AI model is temporarily unavailable. Please try again later. 🔄"
	ChatConfigurationMessage    = "There's an issue with the AI service configuration. Please contact support. ⚙️"
	ChatQuotaMessage            = "AI service limit reached. Please try again later. ⏰"
	ChatNetworkMessage          = "Network connection issue. Please check your internet and try again. 🌐"
	ChatGenericMessage          = "Sorry, I'm having trouble responding right now. Please try again in a moment. 🤖"
)

const chatWelcomeMessage = "👋 Hi! I'm CHTR Assistant, your trading companion. I can help you with:\n\n" +
	"📈 Trading strategies and market analysis\n" +
	"💡 Understanding CHTR platform features\n" +
	"📚 Learning investment concepts\n" +
	"🎯 Stock market insights\n\n" +
	"What would you like to know about trading or investing?"

var chatQuickResponses = []string{
	"How do I start trading on CHTR?",
	"Explain technical analysis basics",
	"What are the best stocks for beginners?",
	"How do stop losses work?",
	"Tell me about portfolio diversification",
}

// ChatModel generates an assistant reply from prior turns.
type ChatModel interface {
	Reply(ctx context.Context, history []domain.ChatTurn, message string) (string, error)
}

// ChatReply is the outcome of one message. Exactly one of Message and
// Error is set.
type ChatReply struct {
	Success bool
	Message string
	Error   string
}

// ChatWelcome is the greeting shown when a conversation opens.
type ChatWelcome struct {
	WelcomeMessage string
	QuickResponses []string
}

// ChatService forwards user messages to the chat model.
type ChatService struct {
	model   ChatModel
	window  int
	timeout time.Duration
	logger  *slog.Logger
}

// NewChatService creates a new ChatService. A nil model means the chat
// backend is not configured; every message then gets the configuration
// fallback.
func NewChatService(model ChatModel, window int, timeout time.Duration, logger *slog.Logger) *ChatService {
	return &ChatService{
		model:   model,
		window:  window,
		timeout: timeout,
		logger:  logger,
	}
}

// SendMessage forwards message with at most the last window turns of
// history. Downstream failures are reported in the reply, not as an
// error; the error return is reserved for invalid input.
func (s *ChatService) SendMessage(ctx context.Context, message string, history []domain.ChatTurn) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &domain.ValidationError{Message: "Message is required"}
	}
	for _, turn := range history {
		if turn.Role != domain.ChatRoleUser && turn.Role != domain.ChatRoleAssistant {
			return nil, &domain.ValidationError{Message: "chatHistory roles must be 'user' or 'assistant'"}
		}
	}

	if s.model == nil {
		return &ChatReply{Success: false, Error: ChatConfigurationMessage}, nil
	}

	if len(history) > s.window {
		history = history[len(history)-s.window:]
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.model.Reply(ctx, history, message)
	if err != nil {
		s.logger.Warn("chat reply failed", slog.String("error", err.Error()))
		return &ChatReply{Success: false, Error: chatFallback(err)}, nil
	}
	return &ChatReply{Success: true, Message: text}, nil
}

// Welcome returns the greeting and suggested first questions.
func (s *ChatService) Welcome() ChatWelcome {
	quick := make([]string, len(chatQuickResponses))
	copy(quick, chatQuickResponses)
	return ChatWelcome{
		WelcomeMessage: chatWelcomeMessage,
		QuickResponses: quick,
	}
}

func chatFallback(err error) string {
	switch {
	case errors.Is(err, gemini.ErrModelNotFound):
		return ChatModelUnavailableMessage
	case errors.Is(err, gemini.ErrInvalidAPIKey):
		return ChatConfigurationMessage
	case errors.Is(err, gemini.ErrQuotaExceeded):
		return ChatQuotaMessage
	case errors.Is(err, gemini.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return ChatNetworkMessage
	default:
		return ChatGenericMessage
	}
}
