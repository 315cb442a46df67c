package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/config"
	applog "github.com/matheusmosca/planet-shop/pkg/logger"
)

func newRouter(cfg *config.Config, a *app, logger *zap.Logger) *gin.Engine {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(applog.Middleware(logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	auth := a.identity.Require
	api := r.Group("/api")
	{
		api.POST("/users", a.users.Register)
		api.GET("/users/me", auth(a.users.Me))
		api.DELETE("/users/me", auth(a.users.Deactivate))

		api.GET("/addresses", auth(a.addresses.List))
		api.POST("/addresses", auth(a.addresses.Create))

		api.GET("/cart", auth(a.carts.GetCart))
		api.POST("/cart/items", auth(a.carts.AddItem))
		api.POST("/cart/items/reduce", auth(a.carts.ReduceItem))
		api.DELETE("/cart/items/:sku", auth(a.carts.RemoveItem))

		api.POST("/checkout", auth(a.orders.Checkout))
		api.GET("/orders/:id", auth(a.orders.GetOrder))
		api.GET("/orders/:id/payment", auth(a.payments.GetOrderPayment))

		api.POST("/payments/initiate", auth(a.payments.Initiate))
		api.GET("/payments/verify", auth(a.reconciliation.Verify))
		// Chamado pelo provedor, autenticado pela assinatura HMAC
		api.POST("/payments/webhook", a.reconciliation.Webhook)
		api.GET("/payments/:id", auth(a.payments.GetPayment))
		api.POST("/payments/:id/refund", auth(a.reconciliation.Refund))

		api.PUT("/admin/variants/:sku/stock", a.inventory.SetStock)
	}

	return r
}
