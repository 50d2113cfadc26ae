package relay

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chatrelay/relay/internal/api"
)

// Handler exposes the relay's small operational API: per-user stats and
// an out-of-band conversation clear for operators.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler creates an admin API handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// ConversationStats returns the current turn count for a user.
// GET /api/v1/conversations/{userID}/stats
func (h *Handler) ConversationStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		api.JSONErrorMessage(w, http.StatusBadRequest, "missing user id")
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"turns":   h.svc.TurnCount(r.Context(), userID),
	})
}

type clearRequest struct {
	UserID string `json:"user_id" validate:"required,min=1"`
}

// ClearConversation wipes a user's history.
// POST /api/v1/conversations/clear
func (h *Handler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.JSONErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		api.JSONErrorMessage(w, http.StatusBadRequest, "user_id is required")
		return
	}

	h.svc.Clear(r.Context(), req.UserID)
	api.JSONMessage(w, http.StatusOK, "conversation cleared")
}
