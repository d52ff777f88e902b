package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studycards-backend/services"
	"studycards-backend/utils"
)

const generateTimeout = 60 * time.Second

// HandleGenerateCards runs the retrieval and generation pipeline.
func HandleGenerateCards(generator *services.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), generateTimeout)
		defer cancel()

		result, err := generator.Generate(ctx, req)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"cards": result.Cards,
			"count": len(result.Cards),
		})
	}
}

type reviewRequest struct {
	Rating string `json:"rating" binding:"required"`
}

// HandleReviewCard records a review rating and reschedules the card.
func HandleReviewCard(reviews *services.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "rating is required (again, hard, good, easy)", nil)
			return
		}

		card, err := reviews.ReviewCard(c.Request.Context(), c.Param("id"), req.Rating)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, card)
	}
}
