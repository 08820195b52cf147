package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/juggle/internal/models"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/utils"
	"github.com/sudo-init-do/juggle/internal/validate"
)

// bcrypt rejects longer input.
const maxPasswordBytes = 72

func init() {
	validate.Register("bcrypt", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes), func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
}

type SignupRequest struct {
	FullName        string `json:"full_name" validate:"notblank"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"min=6,bcrypt"`
	FCMToken        string `json:"fcm_token"`
	ProfileImageURL string `json:"profile_image_url"`
}

func ValidateSignup(req SignupRequest) error {
	return validate.Struct(req)
}

// Signup claims the account for req.Email and creates the user profile.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (Session, error) {
	if err := ValidateSignup(req); err != nil {
		return Session{}, err
	}
	hashed, err := s.hash(req.Password)
	if err != nil {
		return Session{}, err
	}

	uid := s.newID()
	accountPath := AccountPath(req.Email)
	err = s.store.Transaction(ctx, accountPath, func(current any) (any, error) {
		if current != nil {
			return nil, ErrEmailTaken
		}
		return models.Account{UserID: uid, PasswordHash: hashed}.Record(), nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("claim account: %w", err)
	}

	user := models.User{
		ID:              uid,
		EmailAddress:    NormalizeEmail(req.Email),
		FullName:        req.FullName,
		ProfileImageURL: req.ProfileImageURL,
		FCMToken:        req.FCMToken,
	}
	if err := s.store.Set(ctx, realtime.Join(models.UsersRef, uid), user.Record()); err != nil {
		// Release the email so the user can retry.
		if derr := s.store.Delete(ctx, accountPath); derr != nil {
			s.logger.Error().Err(derr).Str("user_id", uid).Msg("failed to release account after profile write error")
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Str("user_id", uid).Msg("user signed up")
	return s.issue(user)
}

// Handler exposes authentication over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) fail(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, ErrEmailTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return utils.ErrorResponse(c, err, fallback)
}

// ===== Signup =====
func (h *Handler) Signup(c echo.Context) error {
	req := new(SignupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	sess, err := h.svc.Signup(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err, "signup failed")
	}
	return c.JSON(http.StatusCreated, sess)
}
