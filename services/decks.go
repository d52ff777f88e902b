package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studycards-backend/internal/apperr"
	"studycards-backend/models"
)

// DeckService owns decks and their scheduled cards.
type DeckService struct {
	decks *mongo.Collection
	cards *mongo.Collection
}

func NewDeckService(db *mongo.Database) *DeckService {
	return &DeckService{
		decks: db.Collection("decks"),
		cards: db.Collection("cards"),
	}
}

func (s *DeckService) CreateDeck(ctx context.Context, title string) (*models.Deck, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: deck title must not be empty", apperr.ErrValidation)
	}

	now := time.Now()
	deck := &models.Deck{
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	result, err := s.decks.InsertOne(ctx, deck)
	if err != nil {
		return nil, fmt.Errorf("create deck: %w", err)
	}
	deck.ID = result.InsertedID.(primitive.ObjectID)
	return deck, nil
}

func (s *DeckService) GetDeck(ctx context.Context, id string) (*models.Deck, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: bad deck id %q", apperr.ErrValidation, id)
	}
	var deck models.Deck
	err = s.decks.FindOne(ctx, bson.M{"_id": oid}).Decode(&deck)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: deck %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get deck %s: %w", id, err)
	}
	return &deck, nil
}

func (s *DeckService) ListDecks(ctx context.Context) ([]models.Deck, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.decks.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer cursor.Close(ctx)

	decks := []models.Deck{}
	if err := cursor.All(ctx, &decks); err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return decks, nil
}

// AddCards admits generated cards into a deck with fresh review state.
// Each card starts unscheduled and immediately due.
func (s *DeckService) AddCards(ctx context.Context, deckID string, sourceID string, cards []models.Card) ([]models.ScheduledCard, error) {
	deck, err := s.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: no cards to add", apperr.ErrValidation)
	}

	var srcOID primitive.ObjectID
	if sourceID != "" {
		srcOID, err = primitive.ObjectIDFromHex(sourceID)
		if err != nil {
			return nil, fmt.Errorf("%w: bad source id %q", apperr.ErrValidation, sourceID)
		}
	}

	now := time.Now()
	scheduled := make([]models.ScheduledCard, 0, len(cards))
	docs := make([]interface{}, 0, len(cards))
	for _, c := range cards {
		if strings.TrimSpace(c.Front) == "" || strings.TrimSpace(c.Back) == "" {
			return nil, fmt.Errorf("%w: card is missing front or back", apperr.ErrValidation)
		}
		difficulty := c.Difficulty
		if difficulty == "" {
			difficulty = models.DifficultyGood
		}
		if !difficulty.Valid() {
			return nil, fmt.Errorf("%w: unknown difficulty %q", apperr.ErrValidation, difficulty)
		}
		card := models.ScheduledCard{
			DeckID:       deck.ID,
			SourceID:     srcOID,
			Front:        c.Front,
			Back:         c.Back,
			Hint:         c.Hint,
			Difficulty:   difficulty,
			EaseFactor:   models.InitialEaseFactor,
			Interval:     0,
			Repetitions:  0,
			NextReviewAt: now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		scheduled = append(scheduled, card)
		docs = append(docs, card)
	}

	result, err := s.cards.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("add cards to deck %s: %w", deckID, err)
	}
	for i, id := range result.InsertedIDs {
		scheduled[i].ID = id.(primitive.ObjectID)
	}

	update := bson.M{
		"$inc": bson.M{"card_count": len(scheduled)},
		"$set": bson.M{"updated_at": now},
	}
	if sourceID != "" {
		update["$addToSet"] = bson.M{"source_ids": srcOID}
	}
	if _, err := s.decks.UpdateByID(ctx, deck.ID, update); err != nil {
		return nil, fmt.Errorf("update deck %s: %w", deckID, err)
	}
	return scheduled, nil
}

func (s *DeckService) ListCards(ctx context.Context, deckID string) ([]models.ScheduledCard, error) {
	deck, err := s.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := s.cards.Find(ctx, bson.M{"deck_id": deck.ID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list cards for deck %s: %w", deckID, err)
	}
	defer cursor.Close(ctx)

	cards := []models.ScheduledCard{}
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("list cards for deck %s: %w", deckID, err)
	}
	return cards, nil
}

func (s *DeckService) GetCard(ctx context.Context, cardID string) (*models.ScheduledCard, error) {
	oid, err := primitive.ObjectIDFromHex(cardID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad card id %q", apperr.ErrValidation, cardID)
	}
	var card models.ScheduledCard
	err = s.cards.FindOne(ctx, bson.M{"_id": oid}).Decode(&card)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: card %s", apperr.ErrNotFound, cardID)
	}
	if err != nil {
		return nil, fmt.Errorf("get card %s: %w", cardID, err)
	}
	return &card, nil
}

func (s *DeckService) UpdateCard(ctx context.Context, card *models.ScheduledCard) error {
	_, err := s.cards.ReplaceOne(ctx, bson.M{"_id": card.ID}, card)
	if err != nil {
		return fmt.Errorf("update card %s: %w", card.ID.Hex(), err)
	}
	return nil
}

// DueCards lists the cards in a deck whose next review is at or before now,
// most overdue first.
func (s *DeckService) DueCards(ctx context.Context, deckID string, now time.Time, limit int64) ([]models.ScheduledCard, error) {
	deck, err := s.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{
		"deck_id":        deck.ID,
		"next_review_at": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.M{"next_review_at": 1}).SetLimit(limit)
	cursor, err := s.cards.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("due cards for deck %s: %w", deckID, err)
	}
	defer cursor.Close(ctx)

	cards := []models.ScheduledCard{}
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("due cards for deck %s: %w", deckID, err)
	}
	return cards, nil
}
