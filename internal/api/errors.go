package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marcus/taskpilot/internal/tasks"
)

// statusFor maps the task error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound
	case tasks.IsValidation(err), tasks.IsRemote(err), tasks.IsParse(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// internalErrorMessage replaces the detail of 500 responses; the cause is
// attached to the context and reaches the access log.
const internalErrorMessage = "internal server error"

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": internalErrorMessage})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
