// internal/common/utils/jwt.go
// Access token inspection. The client never holds the signing secret, so
// claims are read without verification; the backend still verifies every call.

package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingToken  = errors.New("access token is required")
	ErrInvalidUserID = errors.New("invalid user_id in token")
)

// JWTClaims is the subset of access token claims the client cares about
type JWTClaims struct {
	UserID    int64
	Username  string
	Type      string // "access" or "refresh"
	ExpiresAt int64
}

// Expired reports whether the token's exp claim lies before now
func (c *JWTClaims) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

// ParseAccessToken reads the claims of tokenString without verifying its signature
func ParseAccessToken(tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	userID, err := int64Claim(claims, "user_id")
	if err != nil {
		return nil, err
	}

	return &JWTClaims{
		UserID:    userID,
		Username:  getStringClaim(claims, "username"),
		Type:      getStringClaim(claims, "type"),
		ExpiresAt: getInt64Claim(claims, "exp"),
	}, nil
}

// GenerateJWT signs claims with secret. Used for local fixtures and tests.
func GenerateJWT(claims *JWTClaims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  fmt.Sprintf("%d", claims.UserID),
		"username": claims.Username,
		"type":     claims.Type,
		"exp":      claims.ExpiresAt,
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// The backend has issued user_id both as a string and as a number
func int64Claim(claims jwt.MapClaims, key string) (int64, error) {
	switch val := claims[key].(type) {
	case string:
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil || id <= 0 {
			return 0, ErrInvalidUserID
		}
		return id, nil
	case float64:
		if val <= 0 {
			return 0, ErrInvalidUserID
		}
		return int64(val), nil
	default:
		return 0, ErrInvalidUserID
	}
}

func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

func getInt64Claim(claims jwt.MapClaims, key string) int64 {
	if val, ok := claims[key].(float64); ok {
		return int64(val)
	}
	return 0
}
