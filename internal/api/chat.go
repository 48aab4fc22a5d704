package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/challengely/challengely/internal/domain"
	"github.com/challengely/challengely/internal/identity"
	"github.com/challengely/challengely/internal/prefs"
)

// maxRequestBodySize caps chat and profile request bodies (64KB).
const maxRequestBodySize = 64 << 10

type chatStateResponse struct {
	Messages     []domain.ChatMessage `json:"messages"`
	IsTyping     bool                 `json:"is_typing"`
	PendingInput string               `json:"pending_input"`
}

type chatInputRequest struct {
	Text string `json:"text"`
}

// HandleChatState handles GET /api/chat.
func (h *Handler) HandleChatState(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	JSON(w, http.StatusOK, chatStateResponse{
		Messages:     coord.Chat.Transcript(),
		IsTyping:     coord.Chat.IsTyping(),
		PendingInput: coord.Chat.PendingInput(),
	})
}

// HandleChatInput handles POST /api/chat/input: replaces the pending input
// buffer without sending.
func (h *Handler) HandleChatInput(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req chatInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coord.Chat.UpdateInput(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

// HandleChatSend handles POST /api/chat/send. An optional body text replaces
// the pending input before sending; a blank buffer is a silent no-op, as in
// the client composer.
func (h *Handler) HandleChatSend(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}

	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req chatInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Text != "" {
		coord.Chat.UpdateInput(req.Text)
	}

	slog.Info("Chat send", "user_id", userID, "input_length", len(coord.Chat.PendingInput()))
	coord.Chat.Send(r.Context())

	JSON(w, http.StatusAccepted, chatStateResponse{
		Messages:     coord.Chat.Transcript(),
		IsTyping:     coord.Chat.IsTyping(),
		PendingInput: coord.Chat.PendingInput(),
	})
}

type profileResponse struct {
	domain.UserPreferences
	OnboardingComplete bool `json:"onboarding_complete"`
}

// HandleGetProfile handles GET /api/profile.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p := prefs.Load(r.Context(), h.store, userID)
	JSON(w, http.StatusOK, profileResponse{
		UserPreferences:    p,
		OnboardingComplete: p.OnboardingComplete(),
	})
}

// HandlePutProfile handles PUT /api/profile: the onboarding client writes the
// preference record here.
func (h *Handler) HandlePutProfile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var p domain.UserPreferences
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !p.Difficulty.Valid() {
		p.Difficulty = domain.DifficultyMedium
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}

	prefs.Save(r.Context(), h.store, userID, p)
	JSON(w, http.StatusOK, profileResponse{
		UserPreferences:    p,
		OnboardingComplete: p.OnboardingComplete(),
	})
}
