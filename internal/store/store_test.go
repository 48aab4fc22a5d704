package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := NewMemory()
	defer st.Close()

	exerciseStore(t, ctx, st)

	if st.Len() != 1 {
		t.Fatalf("Len = %d, want 1", st.Len())
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := NewMemory()
	defer st.Close()

	value := []byte("original")
	if err := st.Set(ctx, "k", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[0] = 'X'

	got, _, err := st.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("store shares caller's buffer: %q", got)
	}

	got[0] = 'Y'
	again, _, _ := st.Get(ctx, "k")
	if string(again) != "original" {
		t.Fatalf("Get leaks internal buffer: %q", again)
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := NewSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	exerciseStore(t, ctx, st)
}

func TestSQLiteStoreUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer st.Close()

	for _, v := range []string{"one", "two", "three"} {
		if err := st.Set(ctx, "k", []byte(v)); err != nil {
			t.Fatalf("Set %q failed: %v", v, err)
		}
	}
	got, ok, err := st.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if string(got) != "three" {
		t.Fatalf("value = %q, want the last write", got)
	}
}

// exerciseStore runs the shared contract: set, get, overwrite, delete, and
// missing-key behavior.
func exerciseStore(t *testing.T, ctx context.Context, st Store) {
	t.Helper()

	if _, ok, err := st.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}

	if err := st.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Set(ctx, "b", []byte("2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := st.Get(ctx, "a")
	if err != nil || !ok || string(got) != "1" {
		t.Fatalf("Get a = (%q, %v, %v)", got, ok, err)
	}

	if err := st.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "a"); ok {
		t.Fatal("deleted key still present")
	}
	// Deleting a missing key is not an error.
	if err := st.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}

	if _, ok, _ := st.Get(ctx, "b"); !ok {
		t.Fatal("unrelated key lost")
	}
}
