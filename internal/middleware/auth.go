package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/observability"
)

const principalKey = "principal"

var errMissingSubject = errors.New("userId claim missing")

// Authenticate validates HS256 bearer tokens and stores the caller as a
// models.Principal on the context.
func Authenticate(secret string, logger *zap.Logger) gin.HandlerFunc {
	logger = observability.OrNop(logger).Named("auth")
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			logger.Debug("missing token", zap.String("path", c.FullPath()))
			abort(c, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}

		parts := strings.Fields(raw)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			logger.Debug("invalid token format")
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		principal, err := ParseToken(parts[1], secret)
		if err != nil {
			logger.Info("token validation failed", zap.Error(err))
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// ParseToken verifies a signed token and extracts the caller. The id comes
// from userId, falling back to sub.
func ParseToken(token, secret string) (models.Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Principal{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return models.Principal{}, errors.New("unexpected claims type")
	}

	id, _ := claims["userId"].(string)
	if strings.TrimSpace(id) == "" {
		id, _ = claims["sub"].(string)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Principal{}, errMissingSubject
	}

	role, _ := claims["role"].(string)
	return models.Principal{ID: id, Role: models.ParseRole(role)}, nil
}

// RequireRole rejects authenticated callers whose role is not listed.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "forbidden", "insufficient role")
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	principal, ok := value.(models.Principal)
	return principal, ok
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}
