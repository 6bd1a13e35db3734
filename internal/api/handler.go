package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/render"
	"github.com/Freeeeeet/roomslots/internal/service"
)

type Handler struct {
	booking  *service.BookingService
	schedule *service.ScheduleService
	access   *service.AccessService
	logger   *zap.Logger
}

func NewHandler(booking *service.BookingService, schedule *service.ScheduleService, access *service.AccessService, logger *zap.Logger) *Handler {
	return &Handler{
		booking:  booking,
		schedule: schedule,
		access:   access,
		logger:   logger,
	}
}

type instanceRequest struct {
	InstanceID string `json:"instance_id"`
}

type availabilityRequest struct {
	InstanceID string `json:"instance_id"`
	Available  *bool  `json:"available"`
}

type cellRequest struct {
	Weekday      string `json:"weekday" query:"weekday"`
	Hour         int    `json:"hour" query:"hour"`
	Room         string `json:"room" query:"room"`
	InstructorID string `json:"instructor_id" query:"instructor_id"`
}

func (r cellRequest) cell() model.ScheduleCell {
	return model.ScheduleCell{Weekday: model.Weekday(r.Weekday), Hour: r.Hour, Room: r.Room}
}

type assignmentRequest struct {
	ActorID      string `json:"actor_id" query:"actor_id"`
	InstructorID string `json:"instructor_id" query:"instructor_id"`
}

type contactRequest struct {
	Email          string `json:"email"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

func (h *Handler) date(c echo.Context) string {
	if d := c.QueryParam("date"); d != "" {
		return d
	}
	return h.booking.Today()
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// ListInstances handles GET /v1/instructors/:id/instances?date=
func (h *Handler) ListInstances(c echo.Context) error {
	date := h.date(c)
	list, err := h.booking.ListInstances(c.Request().Context(), actorFrom(c), c.Param("id"), date)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "instances": list})
}

// ListWeek handles GET /v1/instructors/:id/week?date=
func (h *Handler) ListWeek(c echo.Context) error {
	monday, list, err := h.booking.ListWeek(c.Request().Context(), actorFrom(c), c.Param("id"), h.date(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"week_start": monday.Format(model.DateLayout), "instances": list})
}

// WeekImage handles GET /v1/instructors/:id/week.png?date=
func (h *Handler) WeekImage(c echo.Context) error {
	instructorID := c.Param("id")
	monday, list, err := h.booking.ListWeek(c.Request().Context(), actorFrom(c), instructorID, h.date(c))
	if err != nil {
		return h.fail(c, err)
	}

	first, last := h.schedule.HourRange()
	png, err := render.WeekPNG(monday, list, render.WeekOptions{
		Title:     fmt.Sprintf("Schedule of %s", instructorID),
		FirstHour: first,
		LastHour:  last,
		Now:       h.booking.Now(),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// ListBooked handles GET /v1/instructors/:id/bookings. Only the instructor or an admin may see it.
func (h *Handler) ListBooked(c echo.Context) error {
	instructorID := c.Param("id")
	if actorFrom(c) != instructorID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	list, err := h.booking.ListBooked(c.Request().Context(), instructorID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"instances": list})
}

// ListBookable handles GET /v1/bookable?date=
func (h *Handler) ListBookable(c echo.Context) error {
	date := h.date(c)
	list, err := h.booking.ListBookable(c.Request().Context(), actorFrom(c), date)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "instances": list})
}

// SetAvailability handles PUT /v1/instances/availability
func (h *Handler) SetAvailability(c echo.Context) error {
	var req availabilityRequest
	if err := c.Bind(&req); err != nil || req.InstanceID == "" || req.Available == nil {
		return badRequest(c, "instance_id and available are required")
	}

	inst, err := h.booking.SetAvailability(c.Request().Context(), actorFrom(c), req.InstanceID, *req.Available)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, inst)
}

// Book handles POST /v1/instances/book
func (h *Handler) Book(c echo.Context) error {
	var req instanceRequest
	if err := c.Bind(&req); err != nil || req.InstanceID == "" {
		return badRequest(c, "instance_id is required")
	}

	inst, err := h.booking.Book(c.Request().Context(), actorFrom(c), req.InstanceID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, inst)
}

// Cancel handles POST /v1/instances/cancel
func (h *Handler) Cancel(c echo.Context) error {
	var req instanceRequest
	if err := c.Bind(&req); err != nil || req.InstanceID == "" {
		return badRequest(c, "instance_id is required")
	}

	inst, err := h.booking.Cancel(c.Request().Context(), actorFrom(c), req.InstanceID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, inst)
}

// MyInstructors handles GET /v1/me/instructors
func (h *Handler) MyInstructors(c echo.Context) error {
	ids, err := h.access.InstructorsFor(c.Request().Context(), actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"instructor_ids": ids})
}

// PutContact handles PUT /v1/me/contact
func (h *Handler) PutContact(c echo.Context) error {
	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	contact := model.Contact{ActorID: actorFrom(c), Email: req.Email, TelegramChatID: req.TelegramChatID}
	if err := h.access.RegisterContact(c.Request().Context(), contact); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, contact)
}

// ListTemplate handles GET /v1/admin/template
func (h *Handler) ListTemplate(c echo.Context) error {
	cells, err := h.schedule.ListTemplate(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cells": cells})
}

// AssignCell handles PUT /v1/admin/template
func (h *Handler) AssignCell(c echo.Context) error {
	var req cellRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.schedule.AssignCell(c.Request().Context(), req.cell(), req.InstructorID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearCell handles DELETE /v1/admin/template?weekday=&hour=&room=
func (h *Handler) ClearCell(c echo.Context) error {
	var req cellRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid query")
	}

	if err := h.schedule.ClearCell(c.Request().Context(), req.cell()); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GrantAccess handles PUT /v1/admin/assignments
func (h *Handler) GrantAccess(c echo.Context) error {
	var req assignmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.access.Grant(c.Request().Context(), req.ActorID, req.InstructorID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokeAccess handles DELETE /v1/admin/assignments?actor_id=&instructor_id=
func (h *Handler) RevokeAccess(c echo.Context) error {
	var req assignmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid query")
	}

	if err := h.access.Revoke(c.Request().Context(), req.ActorID, req.InstructorID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
