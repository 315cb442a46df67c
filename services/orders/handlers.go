package orders

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
)

// OrderHandler contém os handlers HTTP
type OrderHandler struct {
	useCase *OrderUseCase
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewOrderHandler cria uma nova instância de OrderHandler
func NewOrderHandler(useCase *OrderUseCase, tracer trace.Tracer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		useCase: useCase,
		tracer:  tracer,
		logger:  logger,
	}
}

// Checkout cria um pedido pendente a partir do carrinho
func (h *OrderHandler) Checkout(c *gin.Context, userID string) {
	ctx, span := h.tracer.Start(c.Request.Context(), "checkout")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	order, err := h.useCase.Checkout(ctx, userID)
	if err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}
	span.SetAttributes(attribute.String("order_id", order.ID))

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Order created. Please complete payment to confirm.",
		"order_id":    order.ID,
		"total_price": order.TotalPrice.StringFixed(2),
		"status":      order.Status,
	})
}

// GetOrder retorna o detalhe do pedido
func (h *OrderHandler) GetOrder(c *gin.Context, userID string) {
	order, err := h.useCase.GetOrder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		apperrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
