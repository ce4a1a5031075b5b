package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dayplanner/internal/catalog"
	"dayplanner/internal/core"
	"dayplanner/internal/engine"
	"dayplanner/internal/logging"
	"dayplanner/internal/planner"
	"dayplanner/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, token string) http.Handler {
	t.Helper()
	logger := logging.Discard()
	st, err := store.Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	pl, err := planner.New(st, planner.Config{
		Options:      engine.DefaultOptions(),
		DefaultSleep: core.SleepWindow{WakeTime: core.Clock(6, 0), SleepTime: core.Clock(23, 0)},
		Location:     time.UTC,
	}, nil, logger)
	require.NoError(t, err)

	srv := NewServer("127.0.0.1:0", catalog.New(st, pl, logger), pl, logger, Options{AuthToken: token, RefreshCron: "5 0 * * *"})
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	taskA = `{"id":"a","name":"Standup","durationMinutes":30,"isMandatory":true,"schedulingType":"fixed","defaultTime":"08:00",
		"recurrence":{"frequency":"daily","startDate":"2026-01-01"}}`
	taskB = `{"id":"b","name":"Review","durationMinutes":30,"isMandatory":true,"schedulingType":"fixed","defaultTime":"09:00",
		"recurrence":{"frequency":"daily","startDate":"2026-01-01"}}`
	taskC = `{"id":"c","name":"Write up","durationMinutes":30,"isMandatory":true,"schedulingType":"flexible","timeWindow":"anytime",
		"dependsOn":["a","b"],"recurrence":{"frequency":"daily","startDate":"2026-01-01"}}`
)

func TestHealthz(t *testing.T) {
	h := newTestServer(t, "secret")
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(t, "secret")

	rec := do(t, h, http.MethodGet, "/v1/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, rec).Error.Code)

	rec = do(t, h, http.MethodGet, "/v1/tasks?token=secret", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer secret")
	out := httptest.NewRecorder()
	h.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestTaskLifecycle(t *testing.T) {
	h := newTestServer(t, "")

	rec := do(t, h, http.MethodPost, "/v1/tasks", taskA)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[core.TaskDefinition](t, rec)
	assert.Equal(t, "a", created.ID)
	assert.True(t, created.IsActive)
	assert.Equal(t, 3, created.Priority)
	assert.Equal(t, 30, created.MinDurationMinutes)

	rec = do(t, h, http.MethodPost, "/v1/tasks", taskA)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPatch, "/v1/tasks/a", `{"priority":5,"description":"daily sync"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[core.TaskDefinition](t, rec)
	assert.Equal(t, 5, updated.Priority)
	assert.Equal(t, "Standup", updated.Name)

	rec = do(t, h, http.MethodPatch, "/v1/tasks/a", `{"priority":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[errorBody](t, rec).Error.Code)

	rec = do(t, h, http.MethodPatch, "/v1/tasks/a", `{"id":"z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/tasks/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[core.TaskDefinition](t, rec).Priority)

	rec = do(t, h, http.MethodGet, "/v1/tasks/a/occurrences?from=2026-03-10&count=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	occ := decode[occurrencesResponse](t, rec)
	assert.Equal(t, []core.Date{core.MustDate("2026-03-10"), core.MustDate("2026-03-11"), core.MustDate("2026-03-12")}, occ.Dates)

	rec = do(t, h, http.MethodDelete, "/v1/tasks/a", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/v1/tasks/a", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRejectsBadInput(t *testing.T) {
	h := newTestServer(t, "")

	rec := do(t, h, http.MethodPost, "/v1/tasks", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode[errorBody](t, rec).Error.Code)

	rec = do(t, h, http.MethodPost, "/v1/tasks", `{"name":"x","durationMinutes":30,"schedulingType":"fixed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[errorBody](t, rec).Error.Code)

	rec = do(t, h, http.MethodPost, "/v1/tasks", taskC)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleEndpoint(t *testing.T) {
	h := newTestServer(t, "")
	for _, body := range []string{taskA, taskB, taskC} {
		rec := do(t, h, http.MethodPost, "/v1/tasks", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodDelete, "/v1/tasks/a", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "has_dependents", decode[errorBody](t, rec).Error.Code)

	rec = do(t, h, http.MethodGet, "/v1/schedule?date=2026-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[core.ScheduleResult](t, rec)
	require.True(t, res.Success)
	require.Len(t, res.Schedule, 3)
	assert.Equal(t, "c", res.Schedule[2].ID)
	assert.Equal(t, core.Clock(9, 35), res.Schedule[2].ScheduledTime)

	rec = do(t, h, http.MethodGet, "/v1/schedule?date=03/10/2026", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/occurrences?date=2026-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[occurrenceListResponse](t, rec).Occurrences, 3)

	rec = do(t, h, http.MethodGet, "/v1/schedule/range?from=2026-03-10&to=2026-03-12", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.ScheduleResult](t, rec), 3)

	rec = do(t, h, http.MethodGet, "/v1/schedule/range?from=2026-03-10&to=2026-12-31", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSleepWindowAffectsSchedule(t *testing.T) {
	h := newTestServer(t, "")
	body := `{"id":"read","name":"Read","durationMinutes":60,"isMandatory":true,"schedulingType":"flexible","timeWindow":"morning",
		"recurrence":{"frequency":"daily","startDate":"2026-01-01"}}`
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/v1/tasks", body).Code)

	rec := do(t, h, http.MethodGet, "/v1/sleep/2026-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[sleepResponse](t, rec).Override)

	first := decode[core.ScheduleResult](t, do(t, h, http.MethodGet, "/v1/schedule?date=2026-03-10", ""))
	assert.Equal(t, core.Clock(6, 0), first.Schedule[0].ScheduledTime)

	rec = do(t, h, http.MethodPut, "/v1/sleep/2026-03-10", `{"wakeTime":"07:45","sleepTime":"00:30"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sleep := decode[sleepResponse](t, rec)
	assert.True(t, sleep.Override)
	assert.Equal(t, 16*60+45, sleep.Minutes)

	second := decode[core.ScheduleResult](t, do(t, h, http.MethodGet, "/v1/schedule?date=2026-03-10", ""))
	assert.Equal(t, core.Clock(7, 45), second.Schedule[0].ScheduledTime)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/sleep/2026-03-10", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/sleep/2026-03-10", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/v1/sleep/2026-03-10", `{"wakeTime":"07:00","sleepTime":"07:00"}`).Code)
}

func TestCronPreview(t *testing.T) {
	h := newTestServer(t, "")

	rec := do(t, h, http.MethodPost, "/v1/cron/preview", `{"expr":"30 6 * * 1-5","now":"2026-03-13T12:00:00Z","count":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[cronPreviewResponse](t, rec)
	assert.True(t, res.Valid)
	assert.Equal(t, []string{"2026-03-16T06:30:00Z", "2026-03-17T06:30:00Z"}, res.NextTimes)

	rec = do(t, h, http.MethodPost, "/v1/cron/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[cronPreviewResponse](t, rec)
	assert.Equal(t, "5 0 * * *", res.Expr)
	assert.Len(t, res.NextTimes, 5)

	rec = do(t, h, http.MethodPost, "/v1/cron/preview", `{"expr":"@hourly"}`)
	assert.False(t, decode[cronPreviewResponse](t, rec).Valid)
}
