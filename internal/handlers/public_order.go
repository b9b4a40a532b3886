package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/observability"
	"cookiebarrel/internal/services"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

// OrderService is the order engine as seen by the HTTP layer.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.CreateOrderResult, error)
	UpdateOrder(ctx context.Context, cmd services.UpdateOrderCommand) (models.Order, error)
	GetOrder(ctx context.Context, actor models.Principal, orderID string) (models.Order, error)
	ListOrders(ctx context.Context, actor models.Principal, query services.ListOrdersQuery) (services.ListOrdersResult, error)
	DeleteOrder(ctx context.Context, actor models.Principal, orderID string) error
}

type OrderHandlerDeps struct {
	Orders  OrderService
	Logger  *zap.Logger
	Timeout time.Duration
}

func (d OrderHandlerDeps) logger() *zap.Logger {
	return observability.OrNop(d.Logger).Named("order")
}

type updateOrderRequest struct {
	Status        *string `json:"status"`
	Notes         *string `json:"notes"`
	PaymentStatus *string `json:"paymentStatus"`
}

type paginationResponse struct {
	Page       int64 `json:"page"`
	Limit      int64 `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

/* =========================
   CREATE ORDER
========================= */

func CreateOrder(deps OrderHandlerDeps) gin.HandlerFunc {
	logger := deps.logger()
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, logger, route)

		actor, ok := principal(c, logger, route)
		if !ok {
			return
		}

		var req services.CreateOrderInput
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, logger, http.StatusBadRequest, route, services.CodeInvalidInput, "invalid request body")
			return
		}

		ctx, cancel := requestContext(c, deps.Timeout)
		defer cancel()

		result, err := deps.Orders.CreateOrder(ctx, services.CreateOrderCommand{
			Actor:          actor,
			IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
			Input:          req,
		})
		if err != nil {
			respondWithServiceError(c, logger, route, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
			c.Header(ReplayedHeader, "true")
		}
		c.JSON(status, gin.H{
			"success": true,
			"data":    result.Order,
		})
	}
}

/* =========================
   LIST ORDERS
========================= */

func ListOrders(deps OrderHandlerDeps) gin.HandlerFunc {
	logger := deps.logger()
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, logger, route)

		actor, ok := principal(c, logger, route)
		if !ok {
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, logger, http.StatusBadRequest, route, services.CodeInvalidInput, err.Error())
			return
		}

		ctx, cancel := requestContext(c, deps.Timeout)
		defer cancel()

		result, err := deps.Orders.ListOrders(ctx, actor, services.ListOrdersQuery{
			Status:      c.Query("status"),
			OrderNumber: c.Query("orderNumber"),
			Page:        page,
			Limit:       limit,
		})
		if err != nil {
			respondWithServiceError(c, logger, route, err)
			return
		}

		body := gin.H{
			"success": true,
			"data":    result.Orders,
			"pagination": paginationResponse{
				Page:       result.Page,
				Limit:      result.Limit,
				Total:      result.Total,
				TotalPages: result.TotalPages,
			},
		}
		if result.Stats != nil {
			body["stats"] = result.Stats
		}
		c.JSON(http.StatusOK, body)
	}
}

/* =========================
   GET ORDER
========================= */

func GetOrder(deps OrderHandlerDeps) gin.HandlerFunc {
	logger := deps.logger()
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, logger, route)

		actor, ok := principal(c, logger, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c, deps.Timeout)
		defer cancel()

		order, err := deps.Orders.GetOrder(ctx, actor, c.Param("id"))
		if err != nil {
			respondWithServiceError(c, logger, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    order,
		})
	}
}

/* =========================
   UPDATE ORDER
========================= */

func UpdateOrder(deps OrderHandlerDeps) gin.HandlerFunc {
	logger := deps.logger()
	return func(c *gin.Context) {
		const route = "PATCH /orders/:id"
		defer handlePanic(c, logger, route)

		actor, ok := principal(c, logger, route)
		if !ok {
			return
		}

		var req updateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, logger, http.StatusBadRequest, route, services.CodeInvalidInput, "invalid request body")
			return
		}

		ctx, cancel := requestContext(c, deps.Timeout)
		defer cancel()

		order, err := deps.Orders.UpdateOrder(ctx, services.UpdateOrderCommand{
			Actor:         actor,
			OrderID:       c.Param("id"),
			Status:        req.Status,
			Notes:         req.Notes,
			PaymentStatus: req.PaymentStatus,
		})
		if err != nil {
			respondWithServiceError(c, logger, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    order,
		})
	}
}
