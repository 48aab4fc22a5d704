package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ConversationLogEvent is one NDJSON record in the conversation log.
type ConversationLogEvent struct {
	Timestamp string `json:"ts"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Intent    string `json:"intent,omitempty"`
	Text      string `json:"text"`
}

// ConversationLogger records chat traffic for later review.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

// NoopConversationLogger returns a logger that discards everything.
func NoopConversationLogger() ConversationLogger {
	return noopConversationLogger{}
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// fileConversationLogger appends events to per-user NDJSON files through a
// buffered queue so chat paths never block on disk I/O. Events are dropped
// with a warning when the queue is full.
type fileConversationLogger struct {
	dir    string
	queue  chan ConversationLogEvent
	done   chan struct{}
	closed sync.Once
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]*os.File
}

// NewConversationLogger creates an NDJSON conversation logger writing under
// cfg.Dir. Returns a no-op logger when disabled.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create conversation log directory: %w", err)
	}

	l := &fileConversationLogger{
		dir:    cfg.Dir,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
		files:  make(map[string]*os.File),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event, dropping it when the queue is full.
func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("Conversation log queue full, dropping event", "user_id", event.UserID)
	}
}

// Close drains the queue and closes all open files.
func (l *fileConversationLogger) Close() error {
	l.closed.Do(func() {
		close(l.queue)
		<-l.done
	})
	return nil
}

func (l *fileConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		l.write(event)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for path, f := range l.files {
		if err := f.Close(); err != nil {
			l.logger.Warn("Failed to close conversation log file", "path", path, "error", err)
		}
	}
	l.files = make(map[string]*os.File)
}

func (l *fileConversationLogger) write(event ConversationLogEvent) {
	f, err := l.fileFor(event.UserID)
	if err != nil {
		l.logger.Warn("Failed to open conversation log file", "user_id", event.UserID, "error", err)
		return
	}

	line, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("Failed to encode conversation log event", "error", err)
		return
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		l.logger.Warn("Failed to write conversation log event", "user_id", event.UserID, "error", err)
	}
}

func (l *fileConversationLogger) fileFor(userID string) (*os.File, error) {
	if userID == "" {
		userID = "unknown"
	}
	path := filepath.Join(l.dir, userID+".ndjson")

	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.files[path]; ok {
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l.files[path] = f
	return f, nil
}
