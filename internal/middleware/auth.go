// internal/middleware/auth.go
package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
	"github.com/idsee/registry-backend/internal/utils"
)

// AuthRequired validates the bearer token and loads the caller's current
// account row. Handlers read the resulting models.Actor with
// utils.GetActorFromContext.
func AuthRequired(store repository.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		var user *models.User
		err = store.View(c.Request.Context(), func(tx repository.Tx) error {
			var err error
			user, err = tx.Users().GetByID(c.Request.Context(), userID)
			return err
		})
		if errors.Is(err, repository.ErrNotFound) {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}
		if err != nil {
			utils.ServiceErrorResponse(c, fmt.Errorf("failed to load authenticated user: %w", err))
			c.Abort()
			return
		}

		c.Set("user_id", user.ID.String())
		c.Set("user_role", string(user.Role))
		c.Set("actor", user.Actor())
		c.Next()
	}
}

// RoleRequired admits callers holding one of roles. Administrators are always
// admitted.
func RoleRequired(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := utils.GetActorFromContext(c)
		if !ok {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}
		if actor.Role == models.RoleAdmin {
			c.Next()
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		utils.ForbiddenResponse(c, i18n.T(utils.GetLangFromContext(c), "error.forbidden"))
		c.Abort()
	}
}

func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := utils.GetActorFromContext(c)
		if !ok || actor.Role != models.RoleAdmin {
			utils.ForbiddenResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAdminAccessDenied))
			c.Abort()
			return
		}
		c.Next()
	}
}
