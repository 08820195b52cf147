package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/juggle/internal/session"
)

// TokenParser extracts the authenticated user id from a request.
type TokenParser interface {
	ExtractUserIDFromToken(c echo.Context) (string, error)
}

// JWTMiddleware rejects requests without a valid bearer token and attaches
// the session for downstream handlers.
func JWTMiddleware(tokens TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := tokens.ExtractUserIDFromToken(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}
			session.Attach(c, session.Session{UserID: userID})
			return next(c)
		}
	}
}

// TokenVerifier checks a raw token and returns its user id.
type TokenVerifier interface {
	Parse(token string) (string, error)
}

// QueryTokenMiddleware authenticates websocket upgrades, which cannot carry
// an Authorization header from browsers, using the ?token= parameter. A
// bearer header is still accepted when present.
func QueryTokenMiddleware(tokens interface {
	TokenParser
	TokenVerifier
}) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var (
				userID string
				err    error
			)
			if raw := c.QueryParam("token"); raw != "" {
				userID, err = tokens.Parse(raw)
			} else {
				userID, err = tokens.ExtractUserIDFromToken(c)
			}
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}
			session.Attach(c, session.Session{UserID: userID})
			return next(c)
		}
	}
}
