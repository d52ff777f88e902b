package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"studycards-backend/models"
)

func freshCard() models.ScheduledCard {
	return models.ScheduledCard{
		EaseFactor:  models.InitialEaseFactor,
		Interval:    0,
		Repetitions: 0,
	}
}

var reviewTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestReviewFirstGood(t *testing.T) {
	got := Review(freshCard(), models.DifficultyGood, reviewTime)

	assert.Equal(t, 1, got.Repetitions)
	assert.Equal(t, 1, got.Interval)
	assert.InDelta(t, 2.5, got.EaseFactor, 1e-9)
	assert.Equal(t, reviewTime.Add(24*time.Hour), got.NextReviewAt)
	assert.Equal(t, 1, got.ReviewCount)
}

func TestReviewAgainResetsProgress(t *testing.T) {
	card := freshCard()
	card.Repetitions = 4
	card.Interval = 30

	got := Review(card, models.DifficultyAgain, reviewTime)

	assert.Equal(t, 0, got.Repetitions)
	assert.Equal(t, 0, got.Interval)
	assert.InDelta(t, 1.7, got.EaseFactor, 1e-9)
	assert.Equal(t, reviewTime, got.NextReviewAt)
}

func TestReviewIntervalLadder(t *testing.T) {
	card := freshCard()

	card = Review(card, models.DifficultyGood, reviewTime)
	assert.Equal(t, 1, card.Interval)

	card = Review(card, models.DifficultyGood, reviewTime.AddDate(0, 0, 1))
	assert.Equal(t, 6, card.Interval)

	// Third success multiplies by the ease factor.
	card = Review(card, models.DifficultyGood, reviewTime.AddDate(0, 0, 7))
	assert.Equal(t, 15, card.Interval) // round(6 * 2.5)
	assert.Equal(t, 3, card.Repetitions)
}

func TestReviewEaseFactorAdjustments(t *testing.T) {
	easy := Review(freshCard(), models.DifficultyEasy, reviewTime)
	assert.InDelta(t, 2.6, easy.EaseFactor, 1e-9)

	hard := Review(freshCard(), models.DifficultyHard, reviewTime)
	assert.InDelta(t, 2.36, hard.EaseFactor, 1e-9)
	assert.Equal(t, 1, hard.Repetitions) // hard is still a pass
}

func TestReviewEaseFactorFloor(t *testing.T) {
	card := freshCard()
	for i := 0; i < 20; i++ {
		card = Review(card, models.DifficultyAgain, reviewTime)
	}
	assert.Equal(t, models.MinEaseFactor, card.EaseFactor)
}

func TestReviewIsPure(t *testing.T) {
	card := freshCard()
	_ = Review(card, models.DifficultyEasy, reviewTime)

	assert.Equal(t, freshCard(), card)
}

func TestReviewDeterministic(t *testing.T) {
	a := Review(freshCard(), models.DifficultyGood, reviewTime)
	b := Review(freshCard(), models.DifficultyGood, reviewTime)
	assert.Equal(t, a, b)
}

func TestReviewIntervalIsExactDaysAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// Clocks spring forward the night of 2025-03-08; a calendar day here is
	// only 23 hours, but the interval is fixed at 24h per day regardless.
	now := time.Date(2025, 3, 8, 12, 0, 0, 0, loc)
	got := Review(freshCard(), models.DifficultyGood, now)

	assert.Equal(t, 1, got.Interval)
	assert.Equal(t, 24*time.Hour, got.NextReviewAt.Sub(now))
	assert.True(t, got.NextReviewAt.Equal(now.Add(24*time.Hour)))
}

func TestReviewEasierNeverSchedulesSooner(t *testing.T) {
	ratings := []models.Difficulty{
		models.DifficultyAgain,
		models.DifficultyHard,
		models.DifficultyGood,
		models.DifficultyEasy,
	}

	card := freshCard()
	card.Repetitions = 2
	card.Interval = 6

	var prev time.Time
	for i, r := range ratings {
		got := Review(card, r, reviewTime)
		if i > 0 {
			assert.False(t, got.NextReviewAt.Before(prev),
				"rating %s scheduled before an easier rating", r)
		}
		prev = got.NextReviewAt
	}
}
