package addresses

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
)

// AddressHandler contém os handlers HTTP de endereços
type AddressHandler struct {
	useCase *AddressUseCase
	logger  *zap.Logger
}

func NewAddressHandler(useCase *AddressUseCase, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{useCase: useCase, logger: logger}
}

func (h *AddressHandler) Create(c *gin.Context, userID string) {
	var address Address
	if err := c.ShouldBindJSON(&address); err != nil {
		apperrors.Respond(c, h.logger, apperrors.Validation("invalid_request", "Invalid address", err.Error()))
		return
	}

	if err := h.useCase.Create(c.Request.Context(), userID, &address); err != nil {
		apperrors.Respond(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, address)
}

func (h *AddressHandler) List(c *gin.Context, userID string) {
	list, err := h.useCase.List(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, h.logger, err)
		return
	}
	if list == nil {
		list = []Address{}
	}
	c.JSON(http.StatusOK, list)
}
