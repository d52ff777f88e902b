package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studycards-backend/services"
	"studycards-backend/utils"
)

// HandleSearch runs a similarity query over indexed chunks.
// Query params: q (required), source_id, limit.
func HandleSearch(generator *services.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			utils.RespondWithBadRequest(c, "q query parameter is required", nil)
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

		matches, err := generator.Search(c.Request.Context(), query, c.Query("source_id"), limit)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
	}
}
