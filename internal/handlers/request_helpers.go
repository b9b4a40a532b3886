package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cookiebarrel/internal/middleware"
	"cookiebarrel/internal/models"
)

const defaultRequestTimeout = 5 * time.Second

func handlePanic(c *gin.Context, logger *zap.Logger, route string) {
	if r := recover(); r != nil {
		logger.Error("panic recovered",
			zap.String("route", route),
			zap.Any("panic", r),
			zap.String("requestId", middleware.RequestID(c)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal_error",
			"message": "internal server error",
		})
	}
}

func respondWithError(c *gin.Context, logger *zap.Logger, status int, route, code, message string) {
	logger.Debug("returning error",
		zap.String("route", route),
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("message", message),
	)
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// requestContext bounds the handler's work by the configured timeout.
func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

func principal(c *gin.Context, logger *zap.Logger, route string) (models.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondWithError(c, logger, http.StatusUnauthorized, route, "unauthorized", "missing token")
		return models.Principal{}, false
	}
	return p, true
}
