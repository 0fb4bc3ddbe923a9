package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ValidationFailedMessage is the top-level message of a 422 response.
const ValidationFailedMessage = "Validation failed"

// AbortWithBadRequest sends a 400 Bad Request response and aborts the request.
func AbortWithBadRequest(c *gin.Context, message string, details map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewAPIError(message, details))
}

// AbortWithValidation sends a 422 response listing the offending fields.
func AbortWithValidation(c *gin.Context, details map[string]string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, NewAPIError(ValidationFailedMessage, details))
}

// AbortWithNotFound sends a 404 Not Found response and aborts the request.
func AbortWithNotFound(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusNotFound, NewAPIError(message, nil))
}

// AbortWithInternal sends a 500 response. The message is shown to clients, so
// it must not carry internal error text.
func AbortWithInternal(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewAPIError(message, nil))
}
