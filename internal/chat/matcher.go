// Package chat implements the contextual assistant: the rule-based intent
// matcher, the per-challenge transcript store, and the chat session that
// orchestrates them.
package chat

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/challengely/challengely/internal/domain"
)

// Intent labels produced by the default trigger set.
const (
	IntentChallengeQuery = "challenge_query"
	IntentNervousness    = "nervousness"
	IntentDistraction    = "distraction"
)

// Picker selects one of n candidates. Reply selection is intentionally
// non-deterministic; tests inject a fixed picker instead of seeding.
type Picker interface {
	Pick(n int) int
}

// PickerFunc adapts a function to the Picker interface.
type PickerFunc func(n int) int

// Pick implements Picker.
func (f PickerFunc) Pick(n int) int { return f(n) }

func randomPicker() Picker {
	return PickerFunc(func(n int) int {
		if n <= 1 {
			return 0
		}
		return rand.IntN(n)
	})
}

// Trigger maps a keyword condition to an intent and its candidate replies.
// With MatchAll set, every keyword must appear in the input; otherwise any
// single keyword suffices. Matching is case-insensitive substring
// containment, so "nervous" also fires inside "nervousness".
type Trigger struct {
	Intent   string
	Keywords []string
	Replies  []string
	MatchAll bool
}

// Matcher is a pure, stateless mapping from free-text input to a canned
// reply and a matched intent label.
type Matcher struct {
	triggers  []Trigger
	fallbacks []string
	picker    Picker
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithPicker substitutes the reply selector, for tests.
func WithPicker(p Picker) MatcherOption {
	return func(m *Matcher) { m.picker = p }
}

// WithTriggers replaces the default trigger table.
func WithTriggers(triggers []Trigger) MatcherOption {
	return func(m *Matcher) { m.triggers = triggers }
}

// DefaultTriggers returns the built-in trigger table. Order is significant:
// the first trigger whose condition holds wins.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Intent:   IntentChallengeQuery,
			Keywords: []string{"what", "challenge", "today", "current"},
			Replies: []string{
				"Today's challenge is: a 30-minute mindfulness walk 🌿",
				"Your challenge for today: take a mindful walk for 30 minutes! 🚶‍♂️",
				"How about a 30-minute mindfulness walk for today's challenge? 🌱",
			},
		},
		{
			Intent:   IntentNervousness,
			Keywords: []string{"nervous"},
			Replies: []string{
				"Start with just 5 minutes! Deep breathing is key. You've got this! 💪",
				"It's okay to feel nervous. Try some deep breaths and start small!",
				"Nervous? Remember, every step counts. Begin gently and be kind to yourself.",
			},
		},
		{
			Intent:   IntentDistraction,
			Keywords: []string{"distracted"},
			Replies: []string{
				"That's totally normal! Try counting your breaths from 1 to 10, then repeat.",
				"If you're distracted, gently bring your focus back to your breath.",
				"Distractions happen! Notice them, then return to your walk.",
			},
		},
	}
}

// DefaultFallbacks returns the reply pool used when no intent matches.
func DefaultFallbacks() []string {
	return []string{
		"Interesting thought! Stay focused and keep moving forward 💫",
		"I'm here to help! Can you tell me more?",
		"Could you rephrase that? I'm listening.",
	}
}

// NewMatcher builds a matcher with the default triggers and fallback pool.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		triggers:  DefaultTriggers(),
		fallbacks: DefaultFallbacks(),
		picker:    randomPicker(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match maps input to a reply and a matched intent. An empty intent means no
// trigger matched and the reply came from the fallback pool. The explicit
// challenge-query check runs before the trigger table so an active challenge
// is interpolated instead of the table's generic replies.
func (m *Matcher) Match(input string, active *domain.Challenge) (reply string, intent string) {
	lowered := strings.ToLower(input)

	if strings.Contains(lowered, "what") &&
		(strings.Contains(lowered, "challenge") || strings.Contains(lowered, "today") || strings.Contains(lowered, "current")) {
		if active != nil {
			replies := []string{
				fmt.Sprintf("Your challenge today is: %s 🎯", active.Title),
				fmt.Sprintf("Today's challenge: %s - %s 💪", active.Title, active.Description),
				fmt.Sprintf("You're working on: %s (%s, %s difficulty) 🌟",
					active.Title, active.EstimatedTime, capitalize(string(active.Difficulty))),
			}
			return replies[m.picker.Pick(len(replies))], IntentChallengeQuery
		}
		return "I don't have information about your current challenge. Try checking the Today tab! 📱", IntentChallengeQuery
	}

	for _, trigger := range m.triggers {
		if trigger.matches(lowered) {
			return trigger.Replies[m.picker.Pick(len(trigger.Replies))], trigger.Intent
		}
	}

	return m.fallbacks[m.picker.Pick(len(m.fallbacks))], ""
}

func (t Trigger) matches(lowered string) bool {
	if t.MatchAll {
		for _, kw := range t.Keywords {
			if !strings.Contains(lowered, kw) {
				return false
			}
		}
		return len(t.Keywords) > 0
	}
	for _, kw := range t.Keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
