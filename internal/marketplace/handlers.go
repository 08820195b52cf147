package marketplace

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/juggle/internal/session"
	"github.com/sudo-init-do/juggle/internal/utils"
)

// Handler exposes the marketplace service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) fail(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the owner can do this"})
	}
	return utils.ErrorResponse(c, err, fallback)
}

// CreateTask posts a task for the authenticated user
func (h *Handler) CreateTask(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req TaskInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	task, err := h.svc.CreateTask(c.Request().Context(), sess, req)
	if err != nil {
		return h.fail(c, err, "could not create task")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"task":    task,
		"message": "task created successfully",
	})
}

// ListTasks returns all tasks, optionally filtered by ?category=
func (h *Handler) ListTasks(c echo.Context) error {
	tasks, err := h.svc.ListTasks(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return h.fail(c, err, "failed to fetch tasks")
	}
	page, limit := utils.Pagination(c, 20)
	return c.JSON(http.StatusOK, echo.Map{
		"tasks":      utils.Paginate(tasks, page, limit),
		"pagination": utils.PageMeta(page, limit, len(tasks)),
	})
}

// ListUserTasks returns the tasks posted by :id
func (h *Handler) ListUserTasks(c echo.Context) error {
	tasks, err := h.svc.ListUserTasks(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "failed to fetch tasks")
	}
	return c.JSON(http.StatusOK, echo.Map{"tasks": tasks})
}

// GetTask returns the task with its owner and the owner's rating
func (h *Handler) GetTask(c echo.Context) error {
	view, err := h.svc.TaskView(c.Request().Context(), c.Param("owner"), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "failed to fetch task")
	}
	if !view.TaskFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}
	return c.JSON(http.StatusOK, view)
}

// DeleteTask removes one of the authenticated user's tasks
func (h *Handler) DeleteTask(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.svc.DeleteTask(c.Request().Context(), sess, c.Param("owner"), c.Param("id")); err != nil {
		return h.fail(c, err, "could not delete task")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "task deleted"})
}

// Categories lists the categories a task can be posted in
func (h *Handler) Categories(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"categories": Categories})
}

// CreateReview rates the user :id
func (h *Handler) CreateReview(c echo.Context) error {
	sess, err := session.From(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req ReviewInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	review, err := h.svc.CreateReview(c.Request().Context(), sess, c.Param("id"), req)
	if err != nil {
		return h.fail(c, err, "failed to create review")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"review_id": review.ID,
		"message":   "Review created successfully",
	})
}

// GetUserReviews returns the reviews of :id with a rating summary
func (h *Handler) GetUserReviews(c echo.Context) error {
	uid := c.Param("id")
	reviews, err := h.svc.ListReviews(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, err, "failed to fetch reviews")
	}
	page, limit := utils.Pagination(c, 10)
	return c.JSON(http.StatusOK, echo.Map{
		"summary":    summarizeReviews(uid, reviews),
		"reviews":    utils.Paginate(reviews, page, limit),
		"pagination": utils.PageMeta(page, limit, len(reviews)),
	})
}
