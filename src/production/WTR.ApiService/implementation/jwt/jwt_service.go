package jwt

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	api_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/api"
)

// Service validates access tokens issued by the identity service. It never
// issues tokens itself.
type Service struct {
	secretKey []byte
	issuer    string
}

// NewService creates a new JWT service
func NewService(secretKey, issuer string) *Service {
	return &Service{secretKey: []byte(secretKey), issuer: issuer}
}

// ValidateAccessToken validates an access token and returns the claims
func (s *Service) ValidateAccessToken(tokenString string) (*api_models.AccessClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &api_models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*api_models.AccessClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user_id")
	}
	return claims, nil
}
