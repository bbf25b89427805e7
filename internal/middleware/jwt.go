package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/contatus/contatus/internal/pkg/errcode"
	"github.com/contatus/contatus/internal/pkg/jwt"
	"github.com/contatus/contatus/internal/pkg/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextOrgIDKey  = "organization_id"
)

// JWTAuth verifies externally issued tokens and exposes the caller's
// user and organization ids to downstream handlers. Tokens without an
// organization claim are rejected; every CRM resource is tenant-scoped.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		if claims.OrganizationID == "" {
			response.Error(c, errcode.ErrForbidden, "token has no organization")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextOrgIDKey, claims.OrganizationID)
		if claims.Email != "" {
			c.Set("user_email", claims.Email)
		}
		c.Next()
	}
}
