package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies the password for email and issues a token. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	acct, err := s.account(ctx, req.Email)
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	user, err := s.user(ctx, acct.UserID)
	if err != nil {
		return Session{}, err
	}
	return s.issue(user)
}

// ===== Login =====
func (h *Handler) Login(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	sess, err := h.svc.Login(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err, "login failed")
	}
	return c.JSON(http.StatusOK, sess)
}
