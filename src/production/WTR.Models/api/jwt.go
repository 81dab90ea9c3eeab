package api_models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	auth_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/auth"
)

// AccessClaims are the claims of an access token minted by the identity
// service. Only user_id and role are needed here.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	TokenID string `json:"token_id,omitempty"`
}

// Principal is the caller the token was issued for. Roles compare
// case-insensitively.
func (c AccessClaims) Principal() auth_models.Principal {
	return auth_models.Principal{UserID: c.UserID, Role: strings.ToLower(c.Role)}
}
