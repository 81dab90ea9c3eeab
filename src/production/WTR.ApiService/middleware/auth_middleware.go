package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/implementation/jwt"
	auth_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/auth"
)

// Key types for request context
type contextKey string

const (
	PrincipalContextKey contextKey = "principal"
	TokenIDContextKey   contextKey = "token_id"
)

// AuthMiddleware authenticates requests with bearer access tokens
type AuthMiddleware struct {
	jwtService *jwt.Service
	config     Config
}

// Config holds middleware configuration
type Config struct {
	// HTTP header names for tokens
	AccessTokenHeader string

	// Cookie names for tokens (optional alternative to headers)
	AccessTokenCookie string
}

// DefaultConfig returns a default middleware configuration
func DefaultConfig() Config {
	return Config{
		AccessTokenHeader: "Authorization",
		AccessTokenCookie: "access_token",
	}
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtService *jwt.Service, config Config) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService, config: config}
}

// extractToken gets a token from either header or cookie
func extractToken(r *http.Request, headerName, cookieName string) string {
	token := r.Header.Get(headerName)
	if token != "" {
		return strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	}

	if cookieName != "" {
		if cookie, err := r.Cookie(cookieName); err == nil {
			return cookie.Value
		}
	}
	return ""
}

// Authenticate verifies the access token and stores the principal
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := extractToken(c.Request, m.config.AccessTokenHeader, m.config.AccessTokenCookie)
		if accessToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		claims, err := m.jwtService.ValidateAccessToken(accessToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid access token"})
			return
		}

		c.Set(string(PrincipalContextKey), claims.Principal())
		c.Set(string(TokenIDContextKey), claims.TokenID)
		c.Next()
	}
}

// GetPrincipalFromGinContext returns the authenticated principal
func GetPrincipalFromGinContext(c *gin.Context) (auth_models.Principal, error) {
	v, exists := c.Get(string(PrincipalContextKey))
	if !exists {
		return auth_models.Principal{}, errors.New("principal not found in context")
	}
	p, ok := v.(auth_models.Principal)
	if !ok {
		return auth_models.Principal{}, errors.New("invalid principal format in context")
	}
	return p, nil
}
