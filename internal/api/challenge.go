package api

import (
	"errors"
	"net/http"

	"github.com/challengely/challengely/internal/app"
	"github.com/challengely/challengely/internal/challenge"
	"github.com/challengely/challengely/internal/identity"
)

func (h *Handler) coordinator(w http.ResponseWriter, r *http.Request) *app.Coordinator {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}
	return h.manager.Get(r.Context(), userID)
}

// HandleChallengeState handles GET /api/challenge.
func (h *Handler) HandleChallengeState(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	JSON(w, http.StatusOK, coord.Challenge.Snapshot())
}

// HandleReveal handles POST /api/challenge/reveal.
func (h *Handler) HandleReveal(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	if err := coord.Challenge.Reveal(r.Context()); err != nil {
		writeTransitionError(w, err)
		return
	}
	JSON(w, http.StatusOK, coord.Challenge.Snapshot())
}

// HandleAccept handles POST /api/challenge/accept.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	if err := coord.Challenge.Accept(r.Context()); err != nil {
		writeTransitionError(w, err)
		return
	}
	JSON(w, http.StatusOK, coord.Challenge.Snapshot())
}

// HandleComplete handles POST /api/challenge/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	if err := coord.Challenge.Complete(r.Context()); err != nil {
		writeTransitionError(w, err)
		return
	}
	JSON(w, http.StatusOK, coord.Challenge.Snapshot())
}

// HandleReset handles POST /api/challenge/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	coord.Challenge.Reset(r.Context())
	JSON(w, http.StatusOK, coord.Challenge.Snapshot())
}

// HandleAdvance handles POST /api/challenge/advance.
func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	coord.Challenge.Advance(r.Context())
	JSON(w, http.StatusOK, coord.Challenge.Snapshot())
}

// HandleCelebrationAck handles POST /api/challenge/celebration-ack.
func (h *Handler) HandleCelebrationAck(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	coord.Challenge.AcknowledgeCelebration()
	JSON(w, http.StatusOK, coord.Challenge.Snapshot())
}

// HandleStopTimer handles POST /api/challenge/stop-timer.
func (h *Handler) HandleStopTimer(w http.ResponseWriter, r *http.Request) {
	coord := h.coordinator(w, r)
	if coord == nil {
		return
	}
	coord.Challenge.StopTimer(r.Context())
	JSON(w, http.StatusOK, coord.Challenge.Snapshot())
}

func writeTransitionError(w http.ResponseWriter, err error) {
	if errors.Is(err, challenge.ErrInvalidTransition) {
		Error(w, http.StatusConflict, err.Error())
		return
	}
	Error(w, http.StatusInternalServerError, "internal error")
}
