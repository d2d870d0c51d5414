package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/petvoice/chat-service/internal/repositories"
)

// statusFor maps repository errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repositories.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, repositories.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, repositories.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWith(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	msg := fallback
	if status != http.StatusInternalServerError && status != http.StatusBadGateway {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": msg})
}

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func userIDPtr(userID int) *int64 {
	id := int64(userID)
	return &id
}
