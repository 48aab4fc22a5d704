// Package prefs persists the onboarding preference record.
package prefs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/challengely/challengely/internal/domain"
	"github.com/challengely/challengely/internal/store"
)

func key(userID string) string {
	return "prefs:" + userID
}

// Load reads the preference record for userID. Missing or undecodable
// records yield the Guest defaults.
func Load(ctx context.Context, st store.Store, userID string) domain.UserPreferences {
	data, ok, err := st.Get(ctx, key(userID))
	if err != nil {
		slog.Warn("Failed to read preferences, using defaults", "user_id", userID, "error", err)
		return domain.DefaultPreferences()
	}
	if !ok {
		return domain.DefaultPreferences()
	}

	var p domain.UserPreferences
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("Corrupt preferences, using defaults", "user_id", userID, "error", err)
		return domain.DefaultPreferences()
	}
	if !p.Difficulty.Valid() {
		p.Difficulty = domain.DifficultyMedium
	}
	if p.Name == "" {
		p.Name = domain.GuestName
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	return p
}

// Save writes the preference record. Write failures are logged and swallowed.
func Save(ctx context.Context, st store.Store, userID string, p domain.UserPreferences) {
	data, err := json.Marshal(p)
	if err != nil {
		slog.Warn("Failed to encode preferences", "user_id", userID, "error", err)
		return
	}
	if err := st.Set(ctx, key(userID), data); err != nil {
		slog.Warn("Failed to persist preferences", "user_id", userID, "error", err)
	}
}

// Exists reports whether a preference record is present for userID.
func Exists(ctx context.Context, st store.Store, userID string) bool {
	_, ok, err := st.Get(ctx, key(userID))
	return err == nil && ok
}
