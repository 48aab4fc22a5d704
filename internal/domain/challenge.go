// Package domain contains core domain types for the Challengely server.
package domain

// Difficulty rates how demanding a challenge is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the three known difficulty levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Challenge represents a single daily challenge definition.
type Challenge struct {
	Title         string     `json:"title" yaml:"title"`
	Description   string     `json:"description" yaml:"description"`
	EstimatedTime string     `json:"estimated_time" yaml:"estimated_time"`
	Difficulty    Difficulty `json:"difficulty" yaml:"difficulty"`
}

// NoChallenge returns the sentinel value used when the catalog is empty or a
// persisted index no longer resolves to a real challenge.
func NoChallenge() Challenge {
	return Challenge{
		Title:         "No Challenge",
		Description:   "No challenge available.",
		EstimatedTime: "0 min",
		Difficulty:    DifficultyEasy,
	}
}

// IsSentinel reports whether c is the "no challenge available" placeholder.
func (c Challenge) IsSentinel() bool {
	return c.Title == NoChallenge().Title
}
