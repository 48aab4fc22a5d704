package chat

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConversationLoggerWritesNDJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}

	logger.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    "user-1",
		Role:      "user",
		Intent:    "nervousness",
		Text:      "I feel nervous",
	})
	logger.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    "user-1",
		Role:      "assistant",
		Text:      "Start small!",
	})
	logger.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    "user-2",
		Role:      "user",
		Text:      "hello",
	})

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := readNDJSON(t, filepath.Join(dir, "user-1.ndjson"))
	if len(lines) != 2 {
		t.Fatalf("user-1 log has %d lines, want 2", len(lines))
	}
	if lines[0].Role != "user" || lines[0].Intent != "nervousness" {
		t.Fatalf("line 0 = %+v", lines[0])
	}
	if lines[1].Role != "assistant" || lines[1].Intent != "" {
		t.Fatalf("line 1 = %+v", lines[1])
	}

	if got := readNDJSON(t, filepath.Join(dir, "user-2.ndjson")); len(got) != 1 {
		t.Fatalf("user-2 log has %d lines, want 1", len(got))
	}
}

func TestConversationLoggerDisabled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: false, Dir: dir},
		slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	logger.Log(ConversationLogEvent{UserID: "user-1", Role: "user", Text: "hello"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("disabled logger wrote %d files", len(entries))
	}
}

func TestConversationLoggerCloseIdempotent(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: t.TempDir()},
		slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func readNDJSON(t *testing.T, path string) []ConversationLogEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var events []ConversationLogEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev ConversationLogEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return events
}
