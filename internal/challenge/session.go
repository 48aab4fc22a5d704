// Package challenge implements the challenge lifecycle state machine with a
// persisted, resumable timer and streak bookkeeping.
package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/challengely/challengely/internal/catalog"
	"github.com/challengely/challengely/internal/domain"
	"github.com/challengely/challengely/internal/store"
)

// Status is the lifecycle state of the current challenge.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusRevealed  Status = "revealed"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
)

// ErrInvalidTransition is returned when an operation is not legal from the
// session's current status. State is left unchanged.
var ErrInvalidTransition = errors.New("invalid challenge transition")

// EventKind identifies a lifecycle event forwarded to the coordinator.
type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventAdvanced  EventKind = "advanced"
	EventReset     EventKind = "reset"
)

// Event is emitted on complete/advance/reset so the coordinator can keep the
// chat transcript in step with the challenge lifecycle. Completed events carry
// the title/index as they were when the challenge finished; advanced events
// carry the new title/index.
type Event struct {
	Kind   EventKind
	UserID string
	Title  string
	Index  int
}

// persistedState is the minimal resumable record. The catalog itself is never
// persisted; only the index into the freshly supplied catalog at load.
type persistedState struct {
	Index          int        `json:"index"`
	Status         Status     `json:"status"`
	Streak         int        `json:"streak"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	TimerAnchor    *time.Time `json:"timer_anchor,omitempty"`
}

// Snapshot is a read-only view of session state for API responses.
type Snapshot struct {
	Challenge          domain.Challenge `json:"challenge"`
	Index              int              `json:"index"`
	Status             Status           `json:"status"`
	ElapsedSeconds     int              `json:"elapsed_seconds"`
	Streak             int              `json:"streak"`
	CelebrationPending bool             `json:"celebration_pending"`
	TimerRunning       bool             `json:"timer_running"`
}

// Session is the per-user challenge state machine. All mutations are
// serialized behind its mutex; the tick goroutine re-checks status under the
// lock so a late tick after complete/reset is a no-op.
type Session struct {
	userID  string
	catalog *catalog.Catalog
	store   store.Store
	events  chan<- Event
	now     func() time.Time

	mu                 sync.Mutex
	index              int
	status             Status
	elapsedSeconds     int
	timerAnchor        *time.Time
	streak             int
	celebrationPending bool

	tickCancel   context.CancelFunc
	tickInterval time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithTickInterval overrides the one-second tick cadence, for tests.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) { s.tickInterval = d }
}

// Load reconstructs a session from persisted state. A missing or undecodable
// record yields a fresh default session; this is never an error surfaced to
// the caller. If the persisted status is accepted with a live timer anchor,
// the elapsed time missed while the process was down is credited and the
// ticker restarted.
func Load(ctx context.Context, userID string, cat *catalog.Catalog, st store.Store, events chan<- Event, opts ...Option) *Session {
	s := &Session{
		userID:       userID,
		catalog:      cat,
		store:        st,
		events:       events,
		now:          time.Now,
		status:       StatusLocked,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, ok, err := st.Get(ctx, s.stateKey())
	if err != nil {
		slog.Warn("Failed to read challenge state, starting fresh", "user_id", userID, "error", err)
		return s
	}
	if !ok {
		return s
	}

	var ps persistedState
	if err := json.Unmarshal(data, &ps); err != nil {
		slog.Warn("Corrupt challenge state, starting fresh", "user_id", userID, "error", err)
		return s
	}
	if !validStatus(ps.Status) {
		slog.Warn("Unknown persisted status, starting fresh", "user_id", userID, "status", ps.Status)
		return s
	}

	s.index = ps.Index
	s.status = ps.Status
	s.streak = max(0, ps.Streak)
	s.elapsedSeconds = max(0, ps.ElapsedSeconds)

	// The anchor is only meaningful while accepted with a started timer.
	if s.status == StatusAccepted && ps.TimerAnchor != nil {
		now := s.now()
		delta := int(now.Sub(*ps.TimerAnchor).Seconds())
		if delta > 0 {
			s.elapsedSeconds += delta
		}
		anchor := now
		s.timerAnchor = &anchor
		s.mu.Lock()
		s.startTimerLocked()
		s.persistLocked(ctx)
		s.mu.Unlock()
	}

	return s
}

func validStatus(st Status) bool {
	switch st {
	case StatusLocked, StatusRevealed, StatusAccepted, StatusCompleted:
		return true
	}
	return false
}

func (s *Session) stateKey() string {
	return "challenge:" + s.userID
}

// Current returns the active challenge, or the sentinel when the catalog is
// empty or the index is out of range.
func (s *Session) Current() domain.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Get(s.index)
}

// Snapshot returns a consistent view of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Challenge:          s.catalog.Get(s.index),
		Index:              s.index,
		Status:             s.status,
		ElapsedSeconds:     s.elapsedSeconds,
		Streak:             s.streak,
		CelebrationPending: s.celebrationPending,
		TimerRunning:       s.timerAnchor != nil && s.status == StatusAccepted,
	}
}

// Reveal transitions Locked -> Revealed.
func (s *Session) Reveal(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusLocked {
		return fmt.Errorf("reveal from %s: %w", s.status, ErrInvalidTransition)
	}
	s.status = StatusRevealed
	s.persistLocked(ctx)
	return nil
}

// Accept transitions Revealed -> Accepted, zeroes the timer, anchors it to
// now, and starts the tick loop.
func (s *Session) Accept(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRevealed {
		return fmt.Errorf("accept from %s: %w", s.status, ErrInvalidTransition)
	}
	s.status = StatusAccepted
	s.elapsedSeconds = 0
	anchor := s.now()
	s.timerAnchor = &anchor
	s.startTimerLocked()
	s.persistLocked(ctx)
	return nil
}

// Tick advances elapsed time by one second. It only applies while accepted;
// a queued tick arriving after complete or reset is dropped here rather than
// trusting ticker cancellation to be instantaneous.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusAccepted {
		return
	}
	s.elapsedSeconds++
	s.persistLocked(ctx)
}

// Complete transitions Accepted -> Completed. Revealed is also tolerated: the
// UI never offers it, but completing an unaccepted challenge must not crash.
// Increments the streak, marks the celebration pending, stops the timer, and
// emits a completion event carrying the finished challenge's title and index.
func (s *Session) Complete(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusAccepted && s.status != StatusRevealed {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("complete from %s: %w", status, ErrInvalidTransition)
	}
	s.status = StatusCompleted
	s.celebrationPending = true
	s.streak++
	s.timerAnchor = nil
	s.stopTimerLocked()
	s.persistLocked(ctx)
	ev := Event{Kind: EventCompleted, UserID: s.userID, Title: s.catalog.Get(s.index).Title, Index: s.index}
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// Reset returns to Locked from any state, clearing the timer and celebration.
// The streak is deliberately untouched: abandoning a challenge does not break
// a streak, only the passage of a day without completion would.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.status = StatusLocked
	s.elapsedSeconds = 0
	s.timerAnchor = nil
	s.celebrationPending = false
	s.stopTimerLocked()
	s.persistLocked(ctx)
	ev := Event{Kind: EventReset, UserID: s.userID, Title: s.catalog.Get(s.index).Title, Index: s.index}
	s.mu.Unlock()

	s.emit(ev)
}

// Advance moves to the next challenge, wrapping at the end of the catalog,
// and forces the session back to Locked with a cleared timer. The emitted
// event carries the new title/index so stale chat from a previous cycle
// through that slot can be cleared proactively.
func (s *Session) Advance(ctx context.Context) {
	s.mu.Lock()
	if n := s.catalog.Len(); n > 0 {
		s.index = (s.index + 1) % n
	}
	s.status = StatusLocked
	s.elapsedSeconds = 0
	s.timerAnchor = nil
	s.celebrationPending = false
	s.stopTimerLocked()
	s.persistLocked(ctx)
	ev := Event{Kind: EventAdvanced, UserID: s.userID, Title: s.catalog.Get(s.index).Title, Index: s.index}
	s.mu.Unlock()

	s.emit(ev)
}

// AcknowledgeCelebration clears the celebration flag without changing status.
func (s *Session) AcknowledgeCelebration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.celebrationPending = false
}

// StopTimer cancels the tick loop without changing status. Elapsed time is
// preserved; the anchor is cleared so a reload will not credit paused time.
func (s *Session) StopTimer(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.timerAnchor = nil
	s.persistLocked(ctx)
}

// Close stops the tick loop. Persisted state survives for the next Load.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// startTimerLocked launches the tick goroutine, cancelling any prior loop
// first so at most one is live per session.
func (s *Session) startTimerLocked() {
	s.stopTimerLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.tickCancel = cancel

	interval := s.tickInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(context.Background())
			}
		}
	}()
}

func (s *Session) stopTimerLocked() {
	if s.tickCancel != nil {
		s.tickCancel()
		s.tickCancel = nil
	}
}

// persistLocked writes the whole minimal record. Write failures are logged
// and swallowed: in-memory state stays authoritative and the UI never blocks
// on a local save.
func (s *Session) persistLocked(ctx context.Context) {
	ps := persistedState{
		Index:          s.index,
		Status:         s.status,
		Streak:         s.streak,
		ElapsedSeconds: s.elapsedSeconds,
		TimerAnchor:    s.timerAnchor,
	}
	data, err := json.Marshal(ps)
	if err != nil {
		slog.Warn("Failed to encode challenge state", "user_id", s.userID, "error", err)
		return
	}
	if err := s.store.Set(ctx, s.stateKey(), data); err != nil {
		slog.Warn("Failed to persist challenge state", "user_id", s.userID, "error", err)
	}
}

func (s *Session) emit(ev Event) {
	if s.events == nil {
		return
	}
	s.events <- ev
}
