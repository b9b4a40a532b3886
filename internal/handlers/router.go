package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cookiebarrel/internal/middleware"
	"cookiebarrel/internal/observability"
)

type RouterDeps struct {
	Orders    OrderService
	Store     Pinger
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	JWTSecret string
	Timeout   time.Duration
}

// NewRouter wires every HTTP route of the order API.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := observability.OrNop(deps.Logger)

	r := gin.New()
	r.Use(middleware.RequestLogger(logger, deps.Metrics), gin.Recovery())
	r.NoRoute(func(c *gin.Context) {
		respondWithError(c, logger, http.StatusNotFound, "NoRoute", "not_found", "route not found")
	})

	if deps.Store != nil {
		r.GET("/health", Health(deps.Store, logger.Named("health")))
	}
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	orderDeps := OrderHandlerDeps{Orders: deps.Orders, Logger: logger, Timeout: deps.Timeout}
	auth := middleware.Authenticate(deps.JWTSecret, logger)

	orders := r.Group("/orders")
	orders.Use(auth)
	{
		orders.POST("", CreateOrder(orderDeps))
		orders.GET("", ListOrders(orderDeps))
		orders.GET("/:id", GetOrder(orderDeps))
		orders.PATCH("/:id", UpdateOrder(orderDeps))
	}

	admin := r.Group("/admin/api")
	admin.Use(auth, middleware.RequireAdmin())
	{
		admin.DELETE("/orders/:id", DeleteOrder(orderDeps))
	}

	return r
}
