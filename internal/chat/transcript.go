package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/challengely/challengely/internal/domain"
	"github.com/challengely/challengely/internal/store"
)

// TranscriptStore persists the ordered chat transcript for one user, keyed by
// (challenge title, catalog index). Two challenges with identical titles at
// different catalog positions own distinct transcripts.
type TranscriptStore struct {
	store  store.Store
	userID string
}

// NewTranscriptStore creates a transcript store scoped to one user.
func NewTranscriptStore(st store.Store, userID string) *TranscriptStore {
	return &TranscriptStore{store: st, userID: userID}
}

// transcriptKey derives a stable, collision-free key for (title, index).
// The title is hashed rather than sanitized so titles differing only in
// spacing or containing separator characters cannot collide.
func (t *TranscriptStore) transcriptKey(title string, index int) string {
	sum := sha256.Sum256([]byte(title))
	return fmt.Sprintf("chat:%s:%s:%d", t.userID, hex.EncodeToString(sum[:8]), index)
}

// Save writes the transcript for (title, index). Write failures are logged
// and swallowed; the in-memory transcript stays authoritative.
func (t *TranscriptStore) Save(ctx context.Context, messages []domain.ChatMessage, title string, index int) {
	data, err := json.Marshal(messages)
	if err != nil {
		slog.Warn("Failed to encode transcript", "user_id", t.userID, "title", title, "error", err)
		return
	}
	if err := t.store.Set(ctx, t.transcriptKey(title, index), data); err != nil {
		slog.Warn("Failed to persist transcript", "user_id", t.userID, "title", title, "error", err)
	}
}

// Load reads the transcript for (title, index). Missing or undecodable
// records yield an empty transcript, never an error.
func (t *TranscriptStore) Load(ctx context.Context, title string, index int) []domain.ChatMessage {
	data, ok, err := t.store.Get(ctx, t.transcriptKey(title, index))
	if err != nil {
		slog.Warn("Failed to read transcript", "user_id", t.userID, "title", title, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var messages []domain.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		slog.Warn("Corrupt transcript, starting empty", "user_id", t.userID, "title", title, "error", err)
		return nil
	}
	return messages
}

// Clear removes the transcript for (title, index).
func (t *TranscriptStore) Clear(ctx context.Context, title string, index int) {
	if err := t.store.Delete(ctx, t.transcriptKey(title, index)); err != nil {
		slog.Warn("Failed to clear transcript", "user_id", t.userID, "title", title, "error", err)
	}
}
