package messaging

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/juggle/internal/session"
	"github.com/sudo-init-do/juggle/internal/utils"
)

// Handler exposes messaging over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SendMessage - the authenticated user sends a message about a task
func (h *Handler) SendMessage(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body MessageInput
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	msg, err := h.svc.SendMessage(c.Request().Context(), sess, body)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "recipient not found"})
		}
		return utils.ErrorResponse(c, err, "failed to send message")
	}
	return c.JSON(http.StatusCreated, echo.Map{"message_id": msg.ID, "message": msg})
}

// Inbox - newest message per chat partner
func (h *Handler) Inbox(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.svc.Inbox(c.Request().Context(), sess)
	if err != nil {
		return utils.ErrorResponse(c, err, "failed to load inbox")
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": items})
}

// ChatLog - messages with :partner, optionally restricted to ?task=
func (h *Handler) ChatLog(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	messages, err := h.svc.ChatLog(c.Request().Context(), sess, c.Param("partner"), c.QueryParam("task"))
	if err != nil {
		return utils.ErrorResponse(c, err, "failed to load messages")
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": messages})
}

// DeleteConversation - drop the whole history with :partner from the inbox
func (h *Handler) DeleteConversation(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.svc.DeleteConversation(c.Request().Context(), sess, c.Param("partner")); err != nil {
		return utils.ErrorResponse(c, err, "failed to delete conversation")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "conversation deleted"})
}
