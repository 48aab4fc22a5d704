package domain

// GuestName is the placeholder name written when onboarding is skipped.
const GuestName = "Guest"

// UserPreferences is the onboarding record written by the client and read by
// the coordinator to decide onboarding-vs-main routing.
type UserPreferences struct {
	Interests  []string   `json:"interests"`
	Difficulty Difficulty `json:"difficulty"`
	Name       string     `json:"name"`
}

// DefaultPreferences returns the record seeded for first-time visitors.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Interests:  []string{},
		Difficulty: DifficultyMedium,
		Name:       GuestName,
	}
}

// OnboardingComplete reports whether the user finished onboarding with a real
// name rather than the Guest placeholder.
func (p UserPreferences) OnboardingComplete() bool {
	return p.Name != "" && p.Name != GuestName
}
