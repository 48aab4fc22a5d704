// Package app composes the challenge and chat sessions per user and forwards
// lifecycle events between them.
package app

import (
	"context"
	"log/slog"

	"github.com/challengely/challengely/internal/catalog"
	"github.com/challengely/challengely/internal/challenge"
	"github.com/challengely/challengely/internal/chat"
	"github.com/challengely/challengely/internal/domain"
	"github.com/challengely/challengely/internal/prefs"
	"github.com/challengely/challengely/internal/store"
)

// eventBuffer sizes the lifecycle event channel. Events arrive at human
// interaction rates; the buffer only absorbs short bursts.
const eventBuffer = 16

// Coordinator owns one user's challenge and chat sessions and runs the event
// loop that keeps the transcript in step with the challenge lifecycle.
type Coordinator struct {
	userID    string
	store     store.Store
	Challenge *challenge.Session
	Chat      *chat.Session
	events    chan challenge.Event
	done      chan struct{}
}

// Options carries the shared collaborators and tuning applied to every
// coordinator the manager builds.
type Options struct {
	Matcher       *chat.Matcher
	Logger        chat.ConversationLogger
	ChatListeners []chat.Listener
	ChatOptions   []chat.SessionOption
	SessionOpts   []challenge.Option
}

// NewCoordinator loads the user's persisted challenge state, wires up the
// chat session against the same store, and starts the forwarding loop.
func NewCoordinator(ctx context.Context, userID string, cat *catalog.Catalog, st store.Store, opts Options) *Coordinator {
	events := make(chan challenge.Event, eventBuffer)

	c := &Coordinator{
		userID: userID,
		store:  st,
		events: events,
		done:   make(chan struct{}),
	}

	c.Challenge = challenge.Load(ctx, userID, cat, st, events, opts.SessionOpts...)

	matcher := opts.Matcher
	if matcher == nil {
		matcher = chat.NewMatcher()
	}
	chatOpts := opts.ChatOptions
	if opts.Logger != nil {
		chatOpts = append(chatOpts, chat.WithConversationLogger(opts.Logger))
	}
	transcripts := chat.NewTranscriptStore(st, userID)
	c.Chat = chat.NewSession(userID, matcher, transcripts, c.activeChallenge, chatOpts...)
	for _, fn := range opts.ChatListeners {
		c.Chat.Subscribe(fn)
	}

	snap := c.Challenge.Snapshot()
	c.Chat.SwitchChallenge(ctx, snap.Challenge.Title, snap.Index)

	go c.run()
	return c
}

// activeChallenge supplies matcher context: the current challenge, or nil
// when only the sentinel is available.
func (c *Coordinator) activeChallenge() *domain.Challenge {
	cur := c.Challenge.Current()
	if cur.IsSentinel() {
		return nil
	}
	return &cur
}

// run is the forwarding loop. On completion the chat session is told the
// finished challenge's (title, index) so it can wipe that transcript and send
// the reflective prompt; on advance the transcript at the new key is cleared
// before switching to it, so stale messages from a prior cycle through that
// slot never leak; on reset the current key's transcript is cleared.
func (c *Coordinator) run() {
	ctx := context.Background()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			switch ev.Kind {
			case challenge.EventCompleted:
				c.Chat.OnChallengeCompleted(ctx, ev.Title, ev.Index)
			case challenge.EventAdvanced:
				c.Chat.ClearTranscript(ctx, ev.Title, ev.Index)
				c.Chat.SwitchChallenge(ctx, ev.Title, ev.Index)
			case challenge.EventReset:
				c.Chat.ClearTranscript(ctx, ev.Title, ev.Index)
			default:
				slog.Warn("Unknown challenge event", "kind", ev.Kind, "user_id", c.userID)
			}
		}
	}
}

// Preferences returns the user's onboarding record.
func (c *Coordinator) Preferences(ctx context.Context) domain.UserPreferences {
	return prefs.Load(ctx, c.store, c.userID)
}

// OnboardingComplete reports whether the user finished onboarding with a
// real name. The full onboarding flow lives in the client; the server only
// routes on this flag.
func (c *Coordinator) OnboardingComplete(ctx context.Context) bool {
	return c.Preferences(ctx).OnboardingComplete()
}

// Close stops the timer and the forwarding loop. Persisted state survives
// for the next load.
func (c *Coordinator) Close() {
	c.Challenge.Close()
	close(c.done)
}
