package inventory

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
)

// SetStockRequest é o corpo de PUT /api/admin/variants/:sku/stock
type SetStockRequest struct {
	StockQuantity *int `json:"stock_quantity" binding:"required"`
}

// InventoryHandler contém os handlers HTTP para inventário
type InventoryHandler struct {
	ledger *Ledger
	tracer trace.Tracer
	logger *zap.Logger
}

// NewInventoryHandler cria uma nova instância de InventoryHandler
func NewInventoryHandler(ledger *Ledger, tracer trace.Tracer, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		ledger: ledger,
		tracer: tracer,
		logger: logger,
	}
}

// SetStock é o endpoint administrativo de edição de estoque
func (h *InventoryHandler) SetStock(c *gin.Context) {
	var req SetStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, h.logger, apperrors.Validation("invalid_request", "stock_quantity is required"))
		return
	}

	sku := c.Param("sku")
	ctx, span := h.tracer.Start(c.Request.Context(), "set_stock")
	defer span.End()
	span.SetAttributes(
		attribute.String("sku", sku),
		attribute.Int("stock_quantity", *req.StockQuantity),
	)

	variant, err := h.ledger.SetStock(ctx, sku, *req.StockQuantity)
	if err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sku":            variant.SKU,
		"stock_quantity": variant.StockQuantity,
	})
}
