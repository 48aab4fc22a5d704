package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/challengely/challengely/internal/domain"
)

// completionPrompt is the one message the assistant sends unprompted, right
// after a challenge is completed.
const completionPrompt = "How did that feel? What was the hardest part?"

const (
	defaultReplyDelay  = 1500 * time.Millisecond
	defaultPromptDelay = time.Second
)

// EventType discriminates chat events pushed to listeners.
type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
)

// Event is pushed to listeners whenever a message is appended or the typing
// indicator changes. It feeds the websocket stream and the conversation log.
type Event struct {
	Type    EventType           `json:"type"`
	UserID  string              `json:"-"`
	Message *domain.ChatMessage `json:"message,omitempty"`
	Typing  bool                `json:"typing"`
}

// Listener receives chat events. Listeners are invoked outside the session
// lock and must not block for long.
type Listener func(Event)

// Session holds one user's in-memory transcript, pending input, and matcher
// context, and orchestrates the intent matcher and transcript store. All
// mutations are serialized behind its mutex.
type Session struct {
	userID      string
	matcher     *Matcher
	transcripts *TranscriptStore
	active      func() *domain.Challenge
	log         ConversationLogger
	replyDelay  time.Duration
	promptDelay time.Duration

	mu                sync.Mutex
	messages          []domain.ChatMessage
	pendingInput      string
	isTyping          bool
	lastMatchedIntent string
	fallbackCount     int
	curTitle          string
	curIndex          int
	listeners         []Listener
}

// SessionOption configures a chat session.
type SessionOption func(*Session)

// WithReplyDelay overrides the artificial typing delay before an assistant
// reply is delivered. The delay is a UX affordance, not a contract; tests
// shorten it.
func WithReplyDelay(d time.Duration) SessionOption {
	return func(s *Session) { s.replyDelay = d }
}

// WithPromptDelay overrides the delay before the post-completion prompt.
func WithPromptDelay(d time.Duration) SessionOption {
	return func(s *Session) { s.promptDelay = d }
}

// WithConversationLogger attaches a conversation logger.
func WithConversationLogger(log ConversationLogger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession creates a chat session for userID. active supplies the current
// challenge for matcher context; it may return nil when no challenge is
// available.
func NewSession(userID string, matcher *Matcher, transcripts *TranscriptStore, active func() *domain.Challenge, opts ...SessionOption) *Session {
	s := &Session{
		userID:      userID,
		matcher:     matcher,
		transcripts: transcripts,
		active:      active,
		log:         noopConversationLogger{},
		replyDelay:  defaultReplyDelay,
		promptDelay: defaultPromptDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a listener for chat events.
func (s *Session) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// UpdateInput replaces the pending input buffer. No validation, no
// persistence; the buffer is transient.
func (s *Session) UpdateInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingInput = text
}

// PendingInput returns the transient input buffer.
func (s *Session) PendingInput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingInput
}

// IsTyping reports whether the assistant typing indicator is on.
func (s *Session) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isTyping
}

// LastIntent returns the most recent matched intent label, empty when the
// last input fell through to the fallback pool.
func (s *Session) LastIntent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMatchedIntent
}

// FallbackStreak returns how many consecutive inputs matched no intent.
func (s *Session) FallbackStreak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallbackCount
}

// Transcript returns a copy of the in-memory transcript.
func (s *Session) Transcript() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send consumes the pending input: appends the user message, runs the
// matcher against the active challenge, and schedules the assistant reply
// after the typing delay. A blank (whitespace-only) buffer is a no-op.
// Overlapping sends each deliver their own reply independently.
func (s *Session) Send(ctx context.Context) {
	s.mu.Lock()
	if strings.TrimSpace(s.pendingInput) == "" {
		s.mu.Unlock()
		return
	}
	text := s.pendingInput
	s.pendingInput = ""

	userMsg := domain.NewChatMessage(domain.RoleUser, text)
	s.messages = append(s.messages, userMsg)
	s.isTyping = true

	reply, intent := s.matcher.Match(text, s.active())
	if intent == "" {
		s.fallbackCount++
	} else {
		s.fallbackCount = 0
	}
	s.lastMatchedIntent = intent

	s.transcripts.Save(ctx, s.messages, s.curTitle, s.curIndex)
	s.mu.Unlock()

	s.notify(Event{Type: EventMessage, UserID: s.userID, Message: &userMsg})
	s.notify(Event{Type: EventTyping, UserID: s.userID, Typing: true})
	s.log.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    s.userID,
		Role:      string(domain.RoleUser),
		Text:      text,
		Intent:    intent,
	})

	time.AfterFunc(s.replyDelay, func() {
		s.deliver(context.Background(), reply, intent)
	})
}

// OnChallengeCompleted reacts to a challenge completion: the transcript for
// (title, index) is wiped, and after a short delay the assistant opens the
// conversation with a fixed reflective prompt. This is the only place the
// assistant initiates conversation.
func (s *Session) OnChallengeCompleted(ctx context.Context, title string, index int) {
	s.transcripts.Clear(ctx, title, index)

	s.mu.Lock()
	s.messages = nil
	s.isTyping = true
	s.curTitle = title
	s.curIndex = index
	s.mu.Unlock()

	s.notify(Event{Type: EventTyping, UserID: s.userID, Typing: true})

	time.AfterFunc(s.promptDelay, func() {
		s.deliver(context.Background(), completionPrompt, "")
	})
}

// SwitchChallenge points the session at a new (title, index) key, loading
// that key's persisted transcript and resetting transient matcher context.
// Other keys' transcripts are untouched.
func (s *Session) SwitchChallenge(ctx context.Context, title string, index int) {
	messages := s.transcripts.Load(ctx, title, index)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.curTitle = title
	s.curIndex = index
	s.messages = messages
	s.fallbackCount = 0
	s.lastMatchedIntent = ""
	s.isTyping = false
}

// ClearTranscript wipes the persisted transcript for (title, index). When the
// key is the session's current one, the in-memory transcript is cleared too.
func (s *Session) ClearTranscript(ctx context.Context, title string, index int) {
	s.transcripts.Clear(ctx, title, index)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curTitle == title && s.curIndex == index {
		s.messages = nil
	}
}

// deliver appends the assistant reply and turns off the typing indicator.
// It lands on whatever transcript is current at delivery time; the user
// message is always visible before its reply.
func (s *Session) deliver(ctx context.Context, reply, intent string) {
	s.mu.Lock()
	msg := domain.NewChatMessage(domain.RoleAssistant, reply)
	s.messages = append(s.messages, msg)
	s.isTyping = false
	s.transcripts.Save(ctx, s.messages, s.curTitle, s.curIndex)
	s.mu.Unlock()

	s.notify(Event{Type: EventMessage, UserID: s.userID, Message: &msg})
	s.notify(Event{Type: EventTyping, UserID: s.userID, Typing: false})
	s.log.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    s.userID,
		Role:      string(domain.RoleAssistant),
		Text:      reply,
		Intent:    intent,
	})
}

func (s *Session) notify(ev Event) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
