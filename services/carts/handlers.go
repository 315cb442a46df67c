package carts

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
)

// ItemRequest identifica a variante pelo SKU
type ItemRequest struct {
	VariantSKU string `json:"variant_sku" binding:"required"`
	Quantity   int    `json:"quantity"`
}

func (r *ItemRequest) quantity() int {
	if r.Quantity == 0 {
		return 1
	}
	return r.Quantity
}

// CartHandler contém os handlers HTTP do carrinho
type CartHandler struct {
	useCase *CartUseCase
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewCartHandler cria uma nova instância de CartHandler
func NewCartHandler(useCase *CartUseCase, tracer trace.Tracer, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		useCase: useCase,
		tracer:  tracer,
		logger:  logger,
	}
}

// GetCart retorna o carrinho com o total derivado
func (h *CartHandler) GetCart(c *gin.Context, userID string) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_cart")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	cart, err := h.useCase.GetCart(ctx, userID)
	if err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewCartResponse(cart))
}

// AddItem adiciona (ou soma) uma variante no carrinho
func (h *CartHandler) AddItem(c *gin.Context, userID string) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, h.logger, apperrors.Validation("invalid_request", "variant_sku is required"))
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "add_cart_item")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("sku", req.VariantSKU),
		attribute.Int("quantity", req.quantity()),
	)

	if err := h.useCase.AddItem(ctx, userID, req.VariantSKU, req.quantity()); err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Item added to cart"})
}

// ReduceItem diminui a quantidade de uma variante
func (h *CartHandler) ReduceItem(c *gin.Context, userID string) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, h.logger, apperrors.Validation("invalid_request", "variant_sku is required"))
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "reduce_cart_item")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID), attribute.String("sku", req.VariantSKU))

	removed, err := h.useCase.ReduceItem(ctx, userID, req.VariantSKU, req.quantity())
	if err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}

	if removed {
		c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quantity reduced"})
}

// RemoveItem remove a variante do carrinho
func (h *CartHandler) RemoveItem(c *gin.Context, userID string) {
	sku := c.Param("sku")

	ctx, span := h.tracer.Start(c.Request.Context(), "remove_cart_item")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID), attribute.String("sku", sku))

	if err := h.useCase.RemoveItem(ctx, userID, sku); err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
