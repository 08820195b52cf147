package user

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/juggle/internal/media"
	"github.com/sudo-init-do/juggle/internal/utils"
)

// Handler exposes user profiles over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) fail(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, media.ErrStorageDisabled):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "image uploads are not configured"})
	}
	return utils.ErrorResponse(c, err, fallback)
}

// GET /users/:id
func (h *Handler) GetPublicProfile(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}

	profile, err := h.svc.Profile(c.Request().Context(), userID)
	if err != nil {
		return h.fail(c, err, "failed to fetch user")
	}
	return c.JSON(http.StatusOK, profile)
}
