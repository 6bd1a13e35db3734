package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Freeeeeet/roomslots/internal/service"
)

// statusFor maps the service error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, service.ErrTemporalViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.String("actor_id", actorFrom(c)),
			zap.Error(err))
		if status == http.StatusServiceUnavailable {
			return c.JSON(status, echo.Map{"error": "storage temporarily unavailable"})
		}
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
