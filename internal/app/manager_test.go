package app

import (
	"context"
	"testing"
	"time"

	"github.com/challengely/challengely/internal/challenge"
	"github.com/challengely/challengely/internal/store"
)

func TestManagerReusesCoordinator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(testCatalog(), store.NewMemory(), time.Hour, testOptions())
	defer m.CloseAll()

	first := m.Get(ctx, "user-1")
	second := m.Get(ctx, "user-1")
	if first != second {
		t.Fatal("repeat Get built a new coordinator")
	}
}

func TestManagerIsolatesUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(testCatalog(), store.NewMemory(), time.Hour, testOptions())
	defer m.CloseAll()

	a := m.Get(ctx, "user-a")
	b := m.Get(ctx, "user-b")
	if a == b {
		t.Fatal("distinct users share a coordinator")
	}

	if err := a.Challenge.Reveal(ctx); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	if got := b.Challenge.Snapshot().Status; got != challenge.StatusLocked {
		t.Fatalf("user-b status = %s, want locked", got)
	}
}

func TestManagerSweepEvictsIdleAndStateSurvives(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	m := NewManager(testCatalog(), st, time.Millisecond, testOptions())
	defer m.CloseAll()

	c := m.Get(ctx, "user-1")
	if err := c.Challenge.Reveal(ctx); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	m.sweep()

	m.mu.Lock()
	resident := len(m.coords)
	m.mu.Unlock()
	if resident != 0 {
		t.Fatalf("%d coordinators resident after sweep, want 0", resident)
	}

	// A fresh Get rebuilds from the persisted record.
	rebuilt := m.Get(ctx, "user-1")
	if rebuilt == c {
		t.Fatal("evicted coordinator was resurrected, not rebuilt")
	}
	if got := rebuilt.Challenge.Snapshot().Status; got != challenge.StatusRevealed {
		t.Fatalf("rebuilt status = %s, want revealed", got)
	}
}

func TestManagerSweepKeepsActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(testCatalog(), store.NewMemory(), time.Hour, testOptions())
	defer m.CloseAll()

	m.Get(ctx, "user-1")
	m.sweep()

	m.mu.Lock()
	resident := len(m.coords)
	m.mu.Unlock()
	if resident != 1 {
		t.Fatalf("%d coordinators resident, want 1", resident)
	}
}

func TestManagerCloseAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(testCatalog(), store.NewMemory(), time.Hour, testOptions())

	m.Get(ctx, "user-1")
	m.Get(ctx, "user-2")
	m.CloseAll()

	m.mu.Lock()
	resident := len(m.coords)
	m.mu.Unlock()
	if resident != 0 {
		t.Fatalf("%d coordinators resident after CloseAll, want 0", resident)
	}
}
