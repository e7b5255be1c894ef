package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/petmatch/clinic-api/internal/handler"
	"github.com/petmatch/clinic-api/pkg/auth"
)

const (
	ContextAccountID = "account_id"
	ContextClinicID  = "clinic_id"
)

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and stores the account identity in
// the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		c.Set(ContextAccountID, claims.AccountID.String())
		if claims.ClinicID != nil {
			c.Set(ContextClinicID, claims.ClinicID.String())
		}
		c.Next()
	}
}

// RequireClinic guards staff endpoints: the token must carry a clinic scope.
func (m *AuthMiddleware) RequireClinic() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextClinicID) == "" {
			c.JSON(http.StatusForbidden, handler.NewErrorResponse("clinic scope required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
