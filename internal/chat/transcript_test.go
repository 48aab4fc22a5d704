package chat

import (
	"context"
	"testing"

	"github.com/challengely/challengely/internal/domain"
	"github.com/challengely/challengely/internal/store"
)

func TestTranscriptIsolationPerKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	ts := NewTranscriptStore(st, "user-1")

	ts.Save(ctx, []domain.ChatMessage{domain.NewChatMessage(domain.RoleUser, "first run")}, "Write a Poem", 1)
	ts.Save(ctx, []domain.ChatMessage{domain.NewChatMessage(domain.RoleUser, "second run")}, "Write a Poem", 2)
	ts.Save(ctx, []domain.ChatMessage{domain.NewChatMessage(domain.RoleUser, "walk talk")}, "30-Minute Mindfulness Walk", 1)

	got := ts.Load(ctx, "Write a Poem", 1)
	if len(got) != 1 || got[0].Text != "first run" {
		t.Fatalf("key (poem, 1) = %+v", got)
	}
	got = ts.Load(ctx, "Write a Poem", 2)
	if len(got) != 1 || got[0].Text != "second run" {
		t.Fatalf("key (poem, 2) = %+v", got)
	}

	ts.Clear(ctx, "Write a Poem", 1)
	if got := ts.Load(ctx, "Write a Poem", 1); len(got) != 0 {
		t.Fatalf("cleared key still holds %d messages", len(got))
	}
	if got := ts.Load(ctx, "Write a Poem", 2); len(got) != 1 {
		t.Fatal("clear leaked into a sibling key")
	}
	if got := ts.Load(ctx, "30-Minute Mindfulness Walk", 1); len(got) != 1 {
		t.Fatal("clear leaked across titles")
	}
}

func TestTranscriptIsolationPerUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()

	NewTranscriptStore(st, "user-a").Save(ctx, []domain.ChatMessage{domain.NewChatMessage(domain.RoleUser, "mine")}, "Write a Poem", 1)

	if got := NewTranscriptStore(st, "user-b").Load(ctx, "Write a Poem", 1); len(got) != 0 {
		t.Fatalf("user-b sees user-a's transcript: %+v", got)
	}
}

func TestTranscriptMissingAndCorrupt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	ts := NewTranscriptStore(st, "user-1")

	if got := ts.Load(ctx, "Write a Poem", 1); got != nil {
		t.Fatalf("missing transcript = %+v, want nil", got)
	}

	if err := st.Set(ctx, ts.transcriptKey("Write a Poem", 1), []byte("[broken")); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if got := ts.Load(ctx, "Write a Poem", 1); got != nil {
		t.Fatalf("corrupt transcript = %+v, want nil", got)
	}
}

func TestTranscriptSynthesizesMissingIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	ts := NewTranscriptStore(st, "user-1")

	// An older persisted shape without IDs.
	raw := []byte(`[{"role":"user","text":"hello"},{"role":"assistant","text":"hi"}]`)
	if err := st.Set(ctx, ts.transcriptKey("Write a Poem", 1), raw); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	got := ts.Load(ctx, "Write a Poem", 1)
	if len(got) != 2 {
		t.Fatalf("loaded %d messages, want 2", len(got))
	}
	if got[0].ID == "" || got[1].ID == "" {
		t.Fatal("IDs were not synthesized")
	}
	if got[0].ID == got[1].ID {
		t.Fatal("synthesized IDs collide")
	}
}

func TestTranscriptKeyHashesTitle(t *testing.T) {
	t.Parallel()
	ts := NewTranscriptStore(store.NewMemory(), "user-1")

	// Titles that a naive sanitizer would collapse must stay distinct.
	a := ts.transcriptKey("a:b", 1)
	b := ts.transcriptKey("a_b", 1)
	if a == b {
		t.Fatal("distinct titles produced the same key")
	}
	if a != ts.transcriptKey("a:b", 1) {
		t.Fatal("key derivation is not stable")
	}
}
