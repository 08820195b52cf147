package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/session"
	"github.com/sudo-init-do/juggle/internal/validate"
)

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"min=6,bcrypt"`
}

// ChangePassword replaces the session user's password after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, sess session.Session, req ChangePasswordRequest) error {
	if !sess.Valid() {
		return session.ErrUnauthenticated
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	user, err := s.user(ctx, sess.UserID)
	if err != nil {
		return err
	}
	hashed, err := s.hash(req.NewPassword)
	if err != nil {
		return err
	}

	return s.store.Transaction(ctx, AccountPath(user.EmailAddress), func(current any) (any, error) {
		acct := models.DecodeAccount(current)
		if current == nil || acct.UserID != sess.UserID {
			return nil, ErrInvalidCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return nil, ErrInvalidCredentials
		}
		acct.PasswordHash = hashed
		return acct.Record(), nil
	})
}

// PUT /auth/password
func (h *Handler) ChangePassword(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req := new(ChangePasswordRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := h.svc.ChangePassword(c.Request().Context(), sess, *req); err != nil {
		return h.fail(c, err, "failed to update password")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated successfully"})
}
