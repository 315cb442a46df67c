package payments

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
)

// PaymentHandler contém os handlers HTTP de pagamento
type PaymentHandler struct {
	useCase *PaymentUseCase
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewPaymentHandler cria uma nova instância de PaymentHandler
func NewPaymentHandler(useCase *PaymentUseCase, tracer trace.Tracer, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{useCase: useCase, tracer: tracer, logger: logger}
}

// Initiate abre o pagamento do pedido no provedor
func (h *PaymentHandler) Initiate(c *gin.Context, userID string) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, h.logger, apperrors.Validation("invalid_request", "order_id is required"))
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "initiate_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("order_id", req.OrderID),
	)

	result, err := h.useCase.Initiate(ctx, userID, req)
	if err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}
	span.SetAttributes(attribute.String("tx_ref", result.Reference))

	c.JSON(http.StatusCreated, result)
}

// GetPayment retorna o status do pagamento
func (h *PaymentHandler) GetPayment(c *gin.Context, userID string) {
	detail, err := h.useCase.GetPaymentStatus(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		apperrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetOrderPayment retorna o histórico de pagamento de um pedido
func (h *PaymentHandler) GetOrderPayment(c *gin.Context, userID string) {
	result, err := h.useCase.GetOrderPayment(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		apperrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
