package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RouterConfig struct {
	JWTSecret string
	// Redis backs the booking rate limiter; nil disables it.
	Redis     *redis.Client
	RateLimit int
}

// NewRouter builds the HTTP surface over the booking, schedule and access services.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(RequestID())
	e.Use(Metrics())
	e.Use(AccessLog(logger))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1", JWTAuth(cfg.JWTSecret))

	v1.GET("/instructors/:id/instances", h.ListInstances)
	v1.GET("/instructors/:id/week", h.ListWeek)
	v1.GET("/instructors/:id/week.png", h.WeekImage)
	v1.GET("/instructors/:id/bookings", h.ListBooked)
	v1.GET("/bookable", h.ListBookable)

	v1.GET("/me/instructors", h.MyInstructors)
	v1.PUT("/me/contact", h.PutContact)

	limited := RateLimit(cfg.Redis, cfg.RateLimit, logger)
	v1.PUT("/instances/availability", h.SetAvailability, limited)
	v1.POST("/instances/book", h.Book, limited)
	v1.POST("/instances/cancel", h.Cancel, limited)

	admin := v1.Group("/admin", RequireRole(RoleAdmin))
	admin.GET("/template", h.ListTemplate)
	admin.PUT("/template", h.AssignCell)
	admin.DELETE("/template", h.ClearCell)
	admin.PUT("/assignments", h.GrantAccess)
	admin.DELETE("/assignments", h.RevokeAccess)

	return e
}
