// Package auth resolve o usuário da requisição a partir do header X-User-ID.
package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carrega o id do usuário autenticado pelo gateway de borda
const HeaderUserID = "X-User-ID"

// UserHandlerFunc é um handler que recebe o usuário explicitamente
type UserHandlerFunc func(c *gin.Context, userID string)

// ActiveChecker verifica se a conta ainda pode operar
type ActiveChecker interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// Identity transforma o header em parâmetro do handler
type Identity struct {
	checker ActiveChecker
}

// NewIdentity cria uma nova instância de Identity. checker pode ser nil.
func NewIdentity(checker ActiveChecker) *Identity {
	return &Identity{checker: checker}
}

// Require rejeita requisições sem usuário ou com conta desativada
func (i *Identity) Require(h UserHandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthenticated",
				"message": "Missing " + HeaderUserID + " header",
			})
			return
		}

		if i.checker != nil {
			active, err := i.checker.IsActive(c.Request.Context(), userID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "internal_error",
					"message": "Something went wrong",
				})
				return
			}
			if !active {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "unauthenticated",
					"message": "Account is not active",
				})
				return
			}
		}

		h(c, userID)
	}
}
