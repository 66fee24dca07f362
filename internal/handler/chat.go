package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/efreitasn/stocksim/internal/domain"
	"github.com/efreitasn/stocksim/internal/service"
)

// ChatHandler handles HTTP requests for the trading assistant. Its
// responses use the {success, ...} shape instead of the error envelope.
type ChatHandler struct {
	svc    *service.ChatService
	logger *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(svc *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// chatTurn is one prior message. Clients also send id and timestamp,
// which are ignored.
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON request body for POST /chat.
type chatRequest struct {
	Message     string     `json:"message"`
	ChatHistory []chatTurn `json:"chatHistory"`
}

// chatResponse is the JSON response for POST /chat.
type chatResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// welcomeResponse is the JSON response for GET /chat.
type welcomeResponse struct {
	Success        bool     `json:"success"`
	WelcomeMessage string   `json:"welcomeMessage"`
	QuickResponses []string `json:"quickResponses"`
}

// SendMessage handles POST /chat.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := ParseJSONLenient(r, &req); err != nil {
		WriteJSON(w, http.StatusBadRequest, chatResponse{Success: false, Error: err.Error()})
		return
	}

	history := make([]domain.ChatTurn, len(req.ChatHistory))
	for i, turn := range req.ChatHistory {
		history[i] = domain.ChatTurn{Role: domain.ChatRole(turn.Role), Content: turn.Content}
	}

	reply, err := h.svc.SendMessage(r.Context(), req.Message, history)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			WriteJSON(w, http.StatusBadRequest, chatResponse{Success: false, Error: validationErr.Message})
			return
		}
		h.logger.Error("chat failed", slog.String("error", err.Error()))
		WriteJSON(w, http.StatusInternalServerError, chatResponse{Success: false, Error: "Internal server error"})
		return
	}

	WriteJSON(w, http.StatusOK, chatResponse{
		Success: reply.Success,
		Message: reply.Message,
		Error:   reply.Error,
	})
}

// Welcome handles GET /chat.
func (h *ChatHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	welcome := h.svc.Welcome()
	WriteJSON(w, http.StatusOK, welcomeResponse{
		Success:        true,
		WelcomeMessage: welcome.WelcomeMessage,
		QuickResponses: welcome.QuickResponses,
	})
}
