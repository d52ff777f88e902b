package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Deck groups scheduled cards. Decks own their cards; sources are referenced,
// never owned.
type Deck struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title     string               `bson:"title" json:"title"`
	SourceIDs []primitive.ObjectID `bson:"source_ids,omitempty" json:"source_ids,omitempty"`
	CardCount int                  `bson:"card_count" json:"card_count"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}
