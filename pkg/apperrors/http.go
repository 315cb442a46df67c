package apperrors

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Respond escreve a resposta de erro. O texto interno do erro vai só para o log.
func Respond(c *gin.Context, logger *zap.Logger, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Unexpected(err)
	}

	status := HTTPStatus(appErr.Kind)
	if status >= 500 {
		logger.Error("❌ request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(err))
	}

	body := gin.H{
		"error":   appErr.Code,
		"message": appErr.Message,
	}
	if len(appErr.Details) > 0 && (appErr.Kind == KindValidation || appErr.Kind == KindInsufficientStock) {
		body["details"] = appErr.Details
	}

	c.AbortWithStatusJSON(status, body)
}
