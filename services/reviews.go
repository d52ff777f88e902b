package services

import (
	"context"
	"fmt"
	"time"

	"studycards-backend/internal/apperr"
	"studycards-backend/internal/srs"
	"studycards-backend/models"
)

// ReviewService applies spaced repetition reviews to scheduled cards.
type ReviewService struct {
	Decks *DeckService
	Now   func() time.Time
}

func NewReviewService(decks *DeckService) *ReviewService {
	return &ReviewService{Decks: decks, Now: time.Now}
}

// ReviewCard records one review and persists the rescheduled card.
func (s *ReviewService) ReviewCard(ctx context.Context, cardID, rating string) (*models.ScheduledCard, error) {
	difficulty, err := models.ParseDifficulty(rating)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	card, err := s.Decks.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	updated := srs.Review(*card, difficulty, s.Now())
	if err := s.Decks.UpdateCard(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
