// Package session carries the acting user explicitly from the auth
// middleware into services.
package session

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// userIDKey is the echo context key the JWT middleware fills.
const userIDKey = "user_id"

// ErrUnauthenticated is returned when a request has no session.
var ErrUnauthenticated = errors.New("unauthenticated")

// Session identifies the user a call is made on behalf of.
type Session struct {
	UserID string
}

// Valid reports whether the session names a user.
func (s Session) Valid() bool {
	return s.UserID != ""
}

// Attach stores s on the request context.
func Attach(c echo.Context, s Session) {
	c.Set(userIDKey, s.UserID)
}

// From returns the session attached to c.
func From(c echo.Context) (Session, error) {
	uid, ok := c.Get(userIDKey).(string)
	if !ok || uid == "" {
		return Session{}, ErrUnauthenticated
	}
	return Session{UserID: uid}, nil
}
