package utils

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/session"
	"github.com/sudo-init-do/juggle/internal/validate"
)

// ErrorResponse maps the errors shared by every service onto a JSON error
// response. Anything unrecognised is logged and reported as fallback.
func ErrorResponse(c echo.Context, err error, fallback string) error {
	if ve, ok := validate.As(err); ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": ve.Fields})
	}
	if errors.Is(err, session.ErrUnauthenticated) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if errors.Is(err, realtime.ErrInvalidPath) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	log.Errorf(fallback, err)
	var partial *fanout.PartialWriteError
	if errors.As(err, &partial) {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":        fallback,
			"failed_paths": partial.FailedPaths(),
		})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
}

// Pagination reads page and limit query parameters. Invalid values fall back
// to page 1 and the default limit; limit is capped at 50.
func Pagination(c echo.Context, defaultLimit int) (page, limit int) {
	page = 1
	limit = defaultLimit
	if pageParam := c.QueryParam("page"); pageParam != "" {
		if p, err := strconv.Atoi(pageParam); err == nil && p > 0 {
			page = p
		}
	}
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 && l <= 50 {
			limit = l
		}
	}
	return page, limit
}

// Paginate returns the requested page of items.
func Paginate[T any](items []T, page, limit int) []T {
	offset := (page - 1) * limit
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// PageMeta is the pagination block returned with list responses.
func PageMeta(page, limit, total int) echo.Map {
	return echo.Map{
		"page":  page,
		"limit": limit,
		"total": total,
	}
}
