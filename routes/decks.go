package routes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studycards-backend/models"
	"studycards-backend/services"
	"studycards-backend/utils"
)

// deckStore is the slice of DeckService the deck handlers need.
type deckStore interface {
	CreateDeck(ctx context.Context, title string) (*models.Deck, error)
	AddCards(ctx context.Context, deckID, sourceID string, cards []models.Card) ([]models.ScheduledCard, error)
	ListDecks(ctx context.Context) ([]models.Deck, error)
	ListCards(ctx context.Context, deckID string) ([]models.ScheduledCard, error)
	DueCards(ctx context.Context, deckID string, now time.Time, limit int64) ([]models.ScheduledCard, error)
}

type createDeckRequest struct {
	Title    string `json:"title" binding:"required"`
	SourceID string `json:"source_id,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// HandleCreateDeck creates a deck. When a source_id is given the deck is
// seeded with cards generated from that source's indexed material.
func HandleCreateDeck(decks deckStore, generator *services.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createDeckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "title is required", nil)
			return
		}
		deck, err := decks.CreateDeck(c.Request.Context(), req.Title)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		cards := []models.ScheduledCard{}
		if req.SourceID != "" {
			generated, err := generateForDeck(c, generator, req.SourceID, req.Count)
			if err != nil {
				utils.RespondWithAppError(c, err)
				return
			}
			if len(generated) > 0 {
				cards, err = decks.AddCards(c.Request.Context(), deck.ID.Hex(), req.SourceID, generated)
				if err != nil {
					utils.RespondWithAppError(c, err)
					return
				}
			}
		}
		c.JSON(http.StatusCreated, gin.H{"deck": deck, "cards": cards, "count": len(cards)})
	}
}

func generateForDeck(c *gin.Context, generator *services.Generator, sourceID string, count int) ([]models.Card, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), generateTimeout)
	defer cancel()

	result, err := generator.Generate(ctx, services.GenerateRequest{
		SourceID:  sourceID,
		CardCount: count,
	})
	if err != nil {
		return nil, err
	}
	return result.Cards, nil
}

func HandleListDecks(decks deckStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := decks.ListDecks(c.Request.Context())
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"decks": list, "count": len(list)})
	}
}

type addCardsRequest struct {
	SourceID string        `json:"source_id,omitempty"`
	Count    int           `json:"count,omitempty"`
	Cards    []models.Card `json:"cards,omitempty"`
}

// HandleAddCards admits cards into a deck. Callers either supply the cards
// directly or name an indexed source to generate them from.
func HandleAddCards(decks deckStore, generator *services.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addCardsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}

		cards := req.Cards
		if len(cards) == 0 {
			if req.SourceID == "" {
				utils.RespondWithBadRequest(c, "either cards or a source_id to generate from is required", nil)
				return
			}
			generated, err := generateForDeck(c, generator, req.SourceID, req.Count)
			if err != nil {
				utils.RespondWithAppError(c, err)
				return
			}
			if len(generated) == 0 {
				c.JSON(http.StatusOK, gin.H{"cards": []models.ScheduledCard{}, "count": 0})
				return
			}
			cards = generated
		}

		scheduled, err := decks.AddCards(c.Request.Context(), c.Param("id"), req.SourceID, cards)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"cards": scheduled, "count": len(scheduled)})
	}
}

func HandleListDeckCards(decks deckStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		cards, err := decks.ListCards(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cards": cards, "count": len(cards)})
	}
}

// HandleDueCards lists cards due for review in a deck, most overdue first.
func HandleDueCards(decks deckStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
		cards, err := decks.DueCards(c.Request.Context(), c.Param("id"), time.Now(), limit)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cards": cards, "count": len(cards)})
	}
}

// HandleExportDeck streams the deck as JSON or XLSX for download.
func HandleExportDeck(exporter *services.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		deckID := c.Param("id")
		format := c.DefaultQuery("format", "json")

		data, contentType, err := exporter.Export(c.Request.Context(), deckID, format)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		ext := "json"
		if format == "xlsx" || format == "excel" {
			ext = "xlsx"
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=deck_%s.%s", deckID, ext))
		c.Data(http.StatusOK, contentType, data)
	}
}
