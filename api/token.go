package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and verifies the HS256 bearer tokens of the API.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a manager signing with the given secret.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the user. admin grants access to the
// dispute resolution endpoints.
func (m *TokenManager) Issue(userID string, admin bool) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"admin": admin,
		"iat":   now.Unix(),
		"exp":   now.Add(m.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies the token and extracts the user identity.
func (m *TokenManager) Parse(token string) (userID string, admin bool, err error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", false, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", false, jwt.ErrTokenInvalidClaims
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", false, jwt.ErrTokenInvalidClaims
	}
	admin, _ = claims["admin"].(bool)
	return sub, admin, nil
}
