package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/session"
)

// Me returns the profile of the session user.
func (s *Service) Me(ctx context.Context, sess session.Session) (models.User, error) {
	if !sess.Valid() {
		return models.User{}, session.ErrUnauthenticated
	}
	return s.user(ctx, sess.UserID)
}

// Me returns the currently authenticated user's profile
func (h *Handler) Me(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	user, err := h.svc.Me(c.Request().Context(), sess)
	if err != nil {
		return h.fail(c, err, "failed to load user")
	}
	return c.JSON(http.StatusOK, user)
}
