package users

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
)

// UserHandler contém os handlers HTTP de contas
type UserHandler struct {
	useCase *UserUseCase
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewUserHandler cria uma nova instância de UserHandler
func NewUserHandler(useCase *UserUseCase, tracer trace.Tracer, logger *zap.Logger) *UserHandler {
	return &UserHandler{useCase: useCase, tracer: tracer, logger: logger}
}

// Register cria a conta (e o carrinho)
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, h.logger, apperrors.Validation("invalid_request", "email, password and password2 are required"))
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "register_user")
	defer span.End()

	account, err := h.useCase.Register(ctx, req)
	if err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}
	span.SetAttributes(attribute.String("user_id", account.ID))

	c.JSON(http.StatusCreated, account)
}

// Me retorna a conta do usuário da requisição
func (h *UserHandler) Me(c *gin.Context, userID string) {
	account, err := h.useCase.Get(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// Deactivate desativa e anonimiza a conta
func (h *UserHandler) Deactivate(c *gin.Context, userID string) {
	ctx, span := h.tracer.Start(c.Request.Context(), "deactivate_user")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	if _, err := h.useCase.Deactivate(ctx, userID); err != nil {
		span.RecordError(err)
		apperrors.Respond(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "Account deleted."})
}
