package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/roomslots/internal/model"
	"github.com/Freeeeeet/roomslots/internal/notify"
	"github.com/Freeeeeet/roomslots/internal/repository"
	"github.com/Freeeeeet/roomslots/internal/repository/base"
	"github.com/Freeeeeet/roomslots/internal/service"
	"github.com/Freeeeeet/roomslots/internal/storage"
)

const (
	testSecret = "test-secret"
	lessonID   = "2026-10-19|08|Room-A|p1"
)

func newTestRouter(t *testing.T, cfg RouterConfig) *echo.Echo {
	t.Helper()

	logger := zap.NewNop()
	b := base.NewRepository(storage.NewMemoryStore(), nil, time.Second)
	templateRepo := repository.NewTemplateRepository(b, logger)
	slotRepo := repository.NewSlotRepository(b, logger)
	accessRepo := repository.NewAccessRepository(b, logger)
	contactRepo := repository.NewContactRepository(b, logger)

	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	booking := service.NewBookingService(templateRepo, slotRepo, accessRepo, notify.LogDispatcher{Logger: logger}, nil,
		service.BookingConfig{Location: time.UTC, Now: func() time.Time { return now }}, logger)
	schedule := service.NewScheduleService(templateRepo, 8, 20, logger)
	access := service.NewAccessService(accessRepo, contactRepo, logger)

	cfg.JWTSecret = testSecret
	return NewRouter(NewHandler(booking, schedule, access, logger), cfg, logger)
}

func token(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "role": role, "exp": exp.Unix()})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, e *echo.Echo, method, target, actor, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if actor != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, actor, role, time.Now().Add(time.Hour)))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeInstances(t *testing.T, rec *httptest.ResponseRecorder) []model.Instance {
	t.Helper()
	var body struct {
		Instances []model.Instance `json:"instances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Instances
}

func seed(t *testing.T, e *echo.Echo) {
	t.Helper()
	rec := do(t, e, http.MethodPut, "/v1/admin/template", "root", RoleAdmin,
		`{"weekday":"Mon","hour":8,"room":"Room-A","instructor_id":"p1"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	for _, actor := range []string{"s1", "s2"} {
		rec = do(t, e, http.MethodPut, "/v1/admin/assignments", "root", RoleAdmin,
			`{"actor_id":"`+actor+`","instructor_id":"p1"}`)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestRouter(t, RouterConfig{})

	rec := do(t, e, http.MethodGet, "/healthz", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	rec = do(t, e, http.MethodGet, "/metrics", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAuth(t *testing.T) {
	e := newTestRouter(t, RouterConfig{})

	rec := do(t, e, http.MethodGet, "/v1/bookable", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/bookable", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "s1", "", time.Now().Add(-time.Minute)))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")

	req = httptest.NewRequest(http.MethodGet, "/v1/bookable", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodGet, "/v1/admin/template", "s1", "student", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	e := newTestRouter(t, RouterConfig{})
	seed(t, e)

	rec := do(t, e, http.MethodGet, "/v1/instructors/p1/instances?date=2026-10-19", "p1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeInstances(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, lessonID, list[0].ID)
	assert.False(t, list[0].Available)

	rec = do(t, e, http.MethodPut, "/v1/instances/availability", "s1", "", `{"instance_id":"`+lessonID+`","available":true}`)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the owner opens a slot")

	rec = do(t, e, http.MethodPut, "/v1/instances/availability", "p1", "", `{"instance_id":"`+lessonID+`","available":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, e, http.MethodGet, "/v1/bookable?date=2026-10-19", "s1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeInstances(t, rec), 1)

	rec = do(t, e, http.MethodPost, "/v1/instances/book", "s1", "", `{"instance_id":"`+lessonID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booked model.Instance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booked))
	assert.Equal(t, "s1", booked.BookedBy)

	rec = do(t, e, http.MethodPost, "/v1/instances/book", "s2", "", `{"instance_id":"`+lessonID+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodGet, "/v1/instructors/p1/bookings", "s1", "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, e, http.MethodGet, "/v1/instructors/p1/bookings", "p1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeInstances(t, rec), 1)

	rec = do(t, e, http.MethodPost, "/v1/instances/cancel", "s2", "", `{"instance_id":"`+lessonID+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, e, http.MethodPost, "/v1/instances/cancel", "s1", "", `{"instance_id":"`+lessonID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, e, http.MethodPost, "/v1/instances/cancel", "s1", "", `{"instance_id":"`+lessonID+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "nothing left to cancel")
}

func TestBadRequests(t *testing.T) {
	e := newTestRouter(t, RouterConfig{})
	seed(t, e)

	rec := do(t, e, http.MethodPost, "/v1/instances/book", "s1", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/v1/instances/book", "s1", "", `{"instance_id":"garbage"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPut, "/v1/instances/availability", "p1", "", `{"instance_id":"`+lessonID+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "available is required")

	rec = do(t, e, http.MethodGet, "/v1/instructors/p1/instances?date=19.10.2026", "p1", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/v1/instances/book", "s1", "", `{"instance_id":"2026-10-19|09|Room-A|p1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminEndpoints(t *testing.T) {
	e := newTestRouter(t, RouterConfig{})
	seed(t, e)

	rec := do(t, e, http.MethodGet, "/v1/admin/template", "root", RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"instructor_id":"p1"`)

	rec = do(t, e, http.MethodDelete, "/v1/admin/template?weekday=Mon&hour=8&room=Room-A", "root", RoleAdmin, "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, e, http.MethodPut, "/v1/admin/template", "root", RoleAdmin, `{"weekday":"Mon","hour":23,"room":"Room-A","instructor_id":"p1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodDelete, "/v1/admin/assignments?actor_id=s1&instructor_id=p1", "root", RoleAdmin, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, e, http.MethodDelete, "/v1/admin/assignments?actor_id=s1&instructor_id=p1", "root", RoleAdmin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, e, http.MethodGet, "/v1/me/instructors", "s2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"instructor_ids":["p1"]}`, rec.Body.String())

	rec = do(t, e, http.MethodPut, "/v1/me/contact", "s2", "", `{"email":"s2@example.org","telegram_chat_id":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"actor_id":"s2"`)
}

func TestWeekEndpoints(t *testing.T) {
	e := newTestRouter(t, RouterConfig{})
	seed(t, e)

	rec := do(t, e, http.MethodGet, "/v1/instructors/p1/week?date=2026-10-21", "p1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"week_start":"2026-10-19"`)
	assert.Len(t, decodeInstances(t, rec), 1)

	rec = do(t, e, http.MethodGet, "/v1/instructors/p1/week.png?date=2026-10-21", "p1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := newTestRouter(t, RouterConfig{Redis: rdb, RateLimit: 2})

	for i := 0; i < 2; i++ {
		rec := do(t, e, http.MethodPost, "/v1/instances/book", "s1", "", `{"instance_id":"garbage"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := do(t, e, http.MethodPost, "/v1/instances/book", "s1", "", `{"instance_id":"garbage"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do(t, e, http.MethodPost, "/v1/instances/book", "s2", "", `{"instance_id":"garbage"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "budgets are per actor")

	mr.Close()
	rec = do(t, e, http.MethodPost, "/v1/instances/book", "s1", "", `{"instance_id":"garbage"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "limiter fails open")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrMalformedInput, http.StatusBadRequest},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrSlotNoLongerAvailable, http.StatusConflict},
		{service.ErrTemporalViolation, http.StatusUnprocessableEntity},
		{service.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
