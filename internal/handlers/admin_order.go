package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeleteOrder removes an order outright. Stock is not restored.
func DeleteOrder(deps OrderHandlerDeps) gin.HandlerFunc {
	logger := deps.logger()
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/orders/:id"
		defer handlePanic(c, logger, route)

		actor, ok := principal(c, logger, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, deps.Timeout)
		defer cancel()

		if err := deps.Orders.DeleteOrder(ctx, actor, c.Param("id")); err != nil {
			respondWithServiceError(c, logger, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "order deleted"})
	}
}
