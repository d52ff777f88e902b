package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studycards-backend/internal/apperr"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithAppError maps a service error onto the right status code.
// Validation problems are the caller's fault, provider failures surface as
// 502 so clients can tell them apart from our own bugs.
func RespondWithAppError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, apperr.ErrNotFound):
		RespondWithNotFound(c, err.Error())
	case errors.Is(err, apperr.ErrProvider):
		RespondWithError(c, http.StatusBadGateway, "provider_error", err.Error(), nil)
	default:
		RespondWithInternalError(c, err.Error(), nil)
	}
}
