package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var (
	ErrMissingToken  = errors.New("missing authorization header")
	ErrInvalidFormat = errors.New("invalid Authorization format")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// JWT issues and verifies HS256 session tokens carrying a user_id claim.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for userID that expires after the configured TTL.
func (j *JWT) Issue(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     j.now().Unix(),
		"exp":     j.now().Add(j.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("token generation failed: %w", err)
	}
	return signed, nil
}

// Parse verifies tokenStr and returns its user id.
func (j *JWT) Parse(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if id, ok := claims["user_id"].(string); ok && id != "" {
		return id, nil
	}
	return "", errors.New("invalid token claims")
}

// ExtractUserIDFromToken pulls the user ID from the bearer token in the
// Authorization header.
func (j *JWT) ExtractUserIDFromToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", ErrMissingToken
	}

	const prefix = "Bearer "
	if len(authHeader) <= len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", ErrInvalidFormat
	}
	return j.Parse(authHeader[len(prefix):])
}
