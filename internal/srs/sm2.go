// Package srs implements the SM-2 spaced repetition schedule.
package srs

import (
	"math"
	"time"

	"studycards-backend/models"
)

// Review applies one SM-2 review to a card and returns the updated copy.
// Pure: the input card is not modified and now is the only clock. A quality
// below 3 resets repetitions and interval; the ease factor is adjusted on
// every review, pass or fail, and never drops below MinEaseFactor.
func Review(card models.ScheduledCard, rating models.Difficulty, now time.Time) models.ScheduledCard {
	quality := rating.Quality()

	if quality < 3 {
		card.Repetitions = 0
		card.Interval = 0
	} else {
		switch card.Repetitions {
		case 0:
			card.Interval = 1
		case 1:
			card.Interval = 6
		default:
			card.Interval = int(math.Round(float64(card.Interval) * card.EaseFactor))
		}
		card.Repetitions++
	}

	q := float64(quality)
	card.EaseFactor += 0.1 - (5-q)*(0.08+(5-q)*0.02)
	if card.EaseFactor < models.MinEaseFactor {
		card.EaseFactor = models.MinEaseFactor
	}

	card.Difficulty = rating
	card.ReviewCount++
	card.NextReviewAt = now.Add(time.Duration(card.Interval) * 24 * time.Hour)
	card.UpdatedAt = now
	return card
}
