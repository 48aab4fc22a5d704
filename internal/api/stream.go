package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/challengely/challengely/internal/chat"
	"github.com/challengely/challengely/internal/identity"
	"github.com/coder/websocket"
)

const streamKeepalive = 30 * time.Second

// StreamManager tracks active chat-event WebSocket connections per user and
// session, and fans chat events out to them.
type StreamManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewStreamManager creates an empty stream registry.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Register adds a connection for a user/session, replacing any stale one.
func (m *StreamManager) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[userID][sessionID] = conn
	slog.Info("Chat stream registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes a connection for a user/session.
func (m *StreamManager) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Chat stream unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Dispatch fans a chat event out to every connection of its user. It is
// registered as a chat session listener; events for users with no open
// stream are simply dropped.
func (m *StreamManager) Dispatch(ev chat.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to marshal chat event", "error", err)
		return
	}

	m.mu.RLock()
	sessions := m.active[ev.UserID]
	conns := make([]*websocket.Conn, 0, len(sessions))
	for _, conn := range sessions {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
			slog.Debug("Chat stream write failed", "user_id", ev.UserID, "error", err)
		}
	}
}

// StreamHandler upgrades /ws/chat requests and holds the connection open for
// pushed chat events.
type StreamHandler struct {
	streams       *StreamManager
	allowedOrigin string
	isDev         bool
}

// NewStreamHandler creates the chat stream WebSocket handler.
func NewStreamHandler(streams *StreamManager, allowedOrigin string, isDev bool) *StreamHandler {
	return &StreamHandler{
		streams:       streams,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.streams.Register(userID, sessionID, ws)
	defer h.streams.Unregister(userID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Keepalive pings so idle streams survive intermediaries.
	go func() {
		ticker := time.NewTicker(streamKeepalive)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ws.Ping(ctx); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Read loop: the client sends nothing meaningful; reading detects close.
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Chat stream closed by client", "user_id", userID)
			}
			return
		}
	}
}

func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
