// Package api provides HTTP handlers for the Challengely API.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/challengely/challengely/internal/app"
	"github.com/challengely/challengely/internal/config"
	"github.com/challengely/challengely/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler serves the challenge, chat, and profile endpoints.
type Handler struct {
	manager     *app.Manager
	store       store.Store
	rateLimiter *RateLimiter
	streams     *StreamManager
	cfg         *config.Config
}

// NewHandler creates a new API handler.
func NewHandler(manager *app.Manager, st store.Store, streams *StreamManager, cfg *config.Config) *Handler {
	return &Handler{
		manager:     manager,
		store:       st,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		streams:     streams,
		cfg:         cfg,
	}
}

// RegisterRoutes registers all API routes (identity middleware required).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/challenge", func(r chi.Router) {
		r.Get("/", h.HandleChallengeState)
		r.Post("/reveal", h.HandleReveal)
		r.Post("/accept", h.HandleAccept)
		r.Post("/complete", h.HandleComplete)
		r.Post("/reset", h.HandleReset)
		r.Post("/advance", h.HandleAdvance)
		r.Post("/celebration-ack", h.HandleCelebrationAck)
		r.Post("/stop-timer", h.HandleStopTimer)
	})
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/", h.HandleChatState)
		r.Post("/input", h.HandleChatInput)
		r.Post("/send", h.HandleChatSend)
	})
	r.Route("/api/profile", func(r chi.Router) {
		r.Get("/", h.HandleGetProfile)
		r.Put("/", h.HandlePutProfile)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RateLimiter implements a per-user rate limiter. The key is userID only so
// clients cannot bypass throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter and starts the background
// eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// startEviction runs a background goroutine that periodically removes expired
// keys from the requests map, preventing unbounded memory growth.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for range ticker.C {
			r.mu.Lock()
			cutoff := time.Now().Add(-r.window)
			for key, times := range r.requests {
				var fresh []time.Time
				for _, t := range times {
					if t.After(cutoff) {
						fresh = append(fresh, t)
					}
				}
				if len(fresh) == 0 {
					delete(r.requests, key)
				} else {
					r.requests[key] = fresh
				}
			}
			r.mu.Unlock()
		}
	}()
}
