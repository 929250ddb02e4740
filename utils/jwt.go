package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"legacyaudit/config"
)

var ErrInvalidToken = errors.New("invalid token")

// JWTClaims identifies the staff user behind an API call.
type JWTClaims struct {
	QuintessUserUID int64  `json:"quintess_user_uid"`
	Login           string `json:"login"`
	Role            string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a token for a staff user with the configured secret
func GenerateJWT(quintessUserUID int64, login, role string, expTime time.Time) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		QuintessUserUID: quintessUserUID,
		Login:           login,
		Role:            role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// ValidateJWT validates a JWT token and extracts its claims
func ValidateJWT(tokenString string) (*JWTClaims, error) {
	if config.AppConfig.JWTSecret == "" {
		return nil, errors.New("jwt secret is not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
