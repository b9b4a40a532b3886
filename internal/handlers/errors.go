package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cookiebarrel/internal/middleware"
	"cookiebarrel/internal/services"
)

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation, services.KindProductUnavailable, services.KindInsufficientStock:
		return http.StatusBadRequest
	case services.KindInvalidTransition, services.KindConflict:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError renders a service failure. Storage errors are
// logged with their cause and shown to callers only as a generic message.
func respondWithServiceError(c *gin.Context, logger *zap.Logger, route string, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = &services.Error{Kind: services.KindStorage, Message: "internal server error", Err: err}
	}
	status := statusForKind(svcErr.Kind)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("route", route),
			zap.String("requestId", middleware.RequestID(c)),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(status, gin.H{
			"success": false,
			"error":   string(services.KindStorage),
			"message": "internal server error",
		})
		return
	}

	body := gin.H{
		"success": false,
		"error":   svcErr.PublicCode(),
		"message": svcErr.Message,
	}
	if len(svcErr.Fields) > 0 {
		body["fields"] = svcErr.Fields
	}
	if svcErr.ProductID != "" {
		body["productId"] = svcErr.ProductID
	}
	if svcErr.Kind == services.KindInsufficientStock {
		body["available"] = svcErr.Available
		body["requested"] = svcErr.Requested
	}

	logger.Debug("request rejected",
		zap.String("route", route),
		zap.Int("status", status),
		zap.String("error", svcErr.PublicCode()),
	)
	c.AbortWithStatusJSON(status, body)
}
