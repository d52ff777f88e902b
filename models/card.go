package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Difficulty is the four-value recall rating supplied after each review.
type Difficulty string

const (
	DifficultyAgain Difficulty = "again"
	DifficultyHard  Difficulty = "hard"
	DifficultyGood  Difficulty = "good"
	DifficultyEasy  Difficulty = "easy"
)

// Quality maps a rating onto SM-2's 0-5 quality scale.
func (d Difficulty) Quality() int {
	switch d {
	case DifficultyAgain:
		return 0
	case DifficultyHard:
		return 3
	case DifficultyGood:
		return 4
	case DifficultyEasy:
		return 5
	}
	return 0
}

// Valid reports whether d is one of the four known ratings.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyAgain, DifficultyHard, DifficultyGood, DifficultyEasy:
		return true
	}
	return false
}

// ParseDifficulty validates a rating string from the wire.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// Card is a generated candidate study card, before it is admitted into a
// deck. Ownership transfers to the caller on return from generation.
type Card struct {
	Front      string     `json:"front"`
	Back       string     `json:"back"`
	Hint       string     `json:"hint,omitempty"`
	Difficulty Difficulty `json:"difficulty"`
}

// ScheduledCard is a card admitted into a deck, carrying SM-2 review state.
// The state is mutated only by the review scheduler.
type ScheduledCard struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeckID       primitive.ObjectID `bson:"deck_id" json:"deck_id"`
	SourceID     primitive.ObjectID `bson:"source_id,omitempty" json:"source_id,omitempty"`
	Front        string             `bson:"front" json:"front"`
	Back         string             `bson:"back" json:"back"`
	Hint         string             `bson:"hint,omitempty" json:"hint,omitempty"`
	Difficulty   Difficulty         `bson:"difficulty" json:"difficulty"` // last rating
	EaseFactor   float64            `bson:"ease_factor" json:"ease_factor"`
	Interval     int                `bson:"interval" json:"interval"` // whole days
	Repetitions  int                `bson:"repetitions" json:"repetitions"`
	NextReviewAt time.Time          `bson:"next_review_at" json:"next_review_at"`
	ReviewCount  int                `bson:"review_count" json:"review_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// SM-2 initial state for a freshly admitted card.
const (
	InitialEaseFactor = 2.5
	MinEaseFactor     = 1.3
)
