package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/juggle/internal/session"
)

// PATCH /users/me
func (h *Handler) UpdateProfile(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing token"})
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	u, err := h.svc.UpdateProfile(c.Request().Context(), sess, req)
	if err != nil {
		return h.fail(c, err, "failed to update profile")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "profile updated successfully",
		"user":    u,
	})
}

// PUT /users/me/fcm-token
func (h *Handler) UpdateFCMToken(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing token"})
	}

	var req FCMTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := h.svc.UpdateFCMToken(c.Request().Context(), sess, req.Token); err != nil {
		return h.fail(c, err, "failed to register push token")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "push token registered"})
}

// POST /users/me/profile-image (multipart field "image")
func (h *Handler) UploadProfileImage(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing token"})
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing image file"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable image file"})
	}
	defer f.Close()

	u, err := h.svc.UploadProfileImage(c.Request().Context(), sess, f)
	if err != nil {
		return h.fail(c, err, "failed to upload profile image")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"profile_image_url": u.ProfileImageURL,
		"user":              u,
	})
}
