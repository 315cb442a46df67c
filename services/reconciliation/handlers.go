package reconciliation

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
	"github.com/matheusmosca/planet-shop/services/payments"
)

// HeaderSignature é a assinatura HMAC enviada pelo provedor no webhook
const HeaderSignature = "X-Paystack-Signature"

// ReconciliationHandler contém os handlers HTTP de verificação, estorno e webhook
type ReconciliationHandler struct {
	engine        *Engine
	queue         Queue
	async         bool
	webhookSecret string
	tracer        trace.Tracer
	logger        *zap.Logger
}

// NewReconciliationHandler cria uma nova instância de ReconciliationHandler.
// Com async, a verificação é enfileirada e respondida com 202.
func NewReconciliationHandler(
	engine *Engine,
	queue Queue,
	async bool,
	webhookSecret string,
	tracer trace.Tracer,
	logger *zap.Logger,
) *ReconciliationHandler {
	return &ReconciliationHandler{
		engine:        engine,
		queue:         queue,
		async:         async,
		webhookSecret: webhookSecret,
		tracer:        tracer,
		logger:        logger,
	}
}

// Verify reconcilia o pagamento da referência informada
func (h *ReconciliationHandler) Verify(c *gin.Context, userID string) {
	reference := c.Query("reference")
	if reference == "" {
		apperrors.Respond(c, h.logger, apperrors.Validation("invalid_request", "reference parameter is required"))
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "verify_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("tx_ref", reference),
		attribute.Bool("async", h.async),
	)

	if h.async {
		if err := h.queue.Enqueue(ctx, Job{TxRef: reference}); err != nil {
			span.RecordError(err)
			apperrors.Respond(c, h.logger, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"reference": reference,
			"reason":    ReasonQueued,
			"message":   "Payment verification is in progress.",
		})
		return
	}

	result, err := h.engine.VerifyAndReconcile(ctx, reference)
	if err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}
	span.SetAttributes(
		attribute.String("order_id", result.OrderID),
		attribute.String("reason", string(result.Reason)),
	)

	c.JSON(resultStatus(result), result)
}

func resultStatus(result *Result) int {
	switch {
	case result.Settled():
		return http.StatusOK
	case result.Reason == ReasonUnresolved:
		return http.StatusAccepted
	default:
		return http.StatusBadRequest
	}
}

// Refund estorna o pagamento; o corpo {amount} é opcional
func (h *ReconciliationHandler) Refund(c *gin.Context, userID string) {
	var req RefundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.Respond(c, h.logger, apperrors.Validation("invalid_amount", "Invalid amount format"))
			return
		}
	}

	paymentID := c.Param("id")
	ctx, span := h.tracer.Start(c.Request.Context(), "refund_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("payment_id", paymentID),
	)

	result, err := h.engine.Refund(ctx, userID, paymentID, req.Amount)
	if err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// Webhook valida a assinatura do provedor e enfileira a reconciliação
func (h *ReconciliationHandler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		apperrors.Respond(c, h.logger, apperrors.Validation("invalid_request", "Unreadable body"))
		return
	}

	if !payments.VerifySignature(h.webhookSecret, body, c.GetHeader(HeaderSignature)) {
		h.logger.Warn("⚠️ [WEBHOOK] invalid signature", zap.String("remote_ip", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "invalid_signature",
			"message": "Invalid webhook signature",
		})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		apperrors.Respond(c, h.logger, apperrors.Validation("invalid_request", "Malformed webhook payload"))
		return
	}

	if !strings.HasPrefix(event.Event, "charge.") || event.Data.Reference == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "payment_webhook")
	defer span.End()
	span.SetAttributes(
		attribute.String("event", event.Event),
		attribute.String("tx_ref", event.Data.Reference),
	)

	// Falha ao enfileirar devolve 5xx para o provedor reenviar
	if err := h.queue.Enqueue(ctx, Job{TxRef: event.Data.Reference}); err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}

	h.logger.Info("📥 [WEBHOOK] reconciliation queued",
		zap.String("event", event.Event),
		zap.String("tx_ref", event.Data.Reference))
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}
