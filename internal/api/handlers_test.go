package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/drivinghours/internal/auth"
	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/persistence/memory"
)

var (
	monday  = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	authCfg = auth.Config{Secret: "test-secret", Issuer: "drivinghours-test"}
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	svc := domain.NewService(memory.NewRepository(), compliance.NewCalendar(time.UTC),
		domain.WithClock(func() time.Time { return monday.Add(20 * time.Hour) }),
		domain.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	mux := http.NewServeMux()
	NewHandler(svc).RegisterRoutes(mux)
	return auth.NewMiddleware(authCfg).Wrap(mux)
}

func token(t *testing.T, tenant string, scopes ...string) string {
	t.Helper()
	tok, err := auth.Issue(authCfg, "dispatcher-1", tenant, scopes, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, h http.Handler, method, target, tok string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func activityBody(driver, typ string, start time.Time, hours float64) ActivityRequest {
	return ActivityRequest{
		DriverID:      driver,
		Type:          typ,
		StartDateTime: start,
		EndDateTime:   start.Add(time.Duration(hours * float64(time.Hour))),
	}
}

func TestHealthzSkipsAuth(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestAuthFailures(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/v1/activities?driver_id=d1", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthorized", decode[map[string]string](t, rr)["type"])

	rr = do(t, h, http.MethodPost, "/v1/activities", token(t, "t1", auth.ScopeHoursRead),
		activityBody("d1", "driving", monday.Add(6*time.Hour), 2))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "scope hours:write required", decode[map[string]string](t, rr)["detail"])
}

func TestCreateActivityIsIdempotent(t *testing.T) {
	h := newTestServer(t)
	tok := token(t, "t1", auth.ScopeHoursWrite)
	body := activityBody("d1", "driving", monday.Add(6*time.Hour), 2.5)

	first := do(t, h, http.MethodPost, "/v1/activities", tok, body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	created := decode[CreateActivityResponse](t, first)
	require.Equal(t, 2.5, created.Duration)
	require.Equal(t, "api", created.Source)
	require.Equal(t, "t1", created.TenantID)
	require.False(t, created.Replay)

	second := do(t, h, http.MethodPost, "/v1/activities", tok, body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, second.Code)
	replayed := decode[CreateActivityResponse](t, second)
	require.True(t, replayed.Replay)
	require.Equal(t, created.ActivityID, replayed.ActivityID)
}

func TestCreateActivityValidation(t *testing.T) {
	h := newTestServer(t)
	tok := token(t, "t1", auth.ScopeHoursWrite)

	cases := map[string]any{
		"unknown type":   activityBody("d1", "standby", monday, 1),
		"missing driver": activityBody("", "work", monday, 1),
		"inverted range": activityBody("d1", "work", monday, -1),
		"unknown field":  map[string]any{"driver_id": "d1", "type": "work", "minutes": 5},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/activities", tok, body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestActivityLifecycle(t *testing.T) {
	h := newTestServer(t)
	tok := token(t, "t1", auth.ScopeHoursWrite)

	rr := do(t, h, http.MethodPost, "/v1/activities", tok, activityBody("d1", "driving", monday.Add(6*time.Hour), 2))
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[CreateActivityResponse](t, rr).ActivityID

	rr = do(t, h, http.MethodPut, "/v1/activities/"+id, tok, activityBody("", "break", monday.Add(6*time.Hour), 0.75))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[ActivityView](t, rr)
	require.Equal(t, compliance.ActivityBreak, updated.Type)
	require.Equal(t, 2, updated.Version)

	rr = do(t, h, http.MethodGet, "/v1/activities/"+id, token(t, "t2", auth.ScopeHoursRead), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodDelete, "/v1/activities/"+id, tok, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/activities/"+id, tok, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", decode[map[string]string](t, rr)["type"])
}

func TestListActivitiesPaginates(t *testing.T) {
	h := newTestServer(t)
	tok := token(t, "t1", auth.ScopeHoursWrite)
	for i := 0; i < 3; i++ {
		rr := do(t, h, http.MethodPost, "/v1/activities", tok, activityBody("d1", "work", monday.Add(time.Duration(i)*time.Hour), 1))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := do(t, h, http.MethodGet, "/v1/activities?driver_id=d1&limit=2", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[ListActivitiesResponse](t, rr)
	require.Len(t, page.Items, 2)
	require.Equal(t, monday.Add(2*time.Hour), page.Items[0].StartDateTime)
	require.NotEmpty(t, page.NextCursor)

	rr = do(t, h, http.MethodGet, "/v1/activities?driver_id=d1&limit=2&cursor="+page.NextCursor, tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rest := decode[ListActivitiesResponse](t, rr)
	require.Len(t, rest.Items, 1)
	require.Empty(t, rest.NextCursor)

	rr = do(t, h, http.MethodGet, "/v1/activities?driver_id=d1&cursor=!!!", tok, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/activities", tok, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDailyAndComplianceEndpoints(t *testing.T) {
	h := newTestServer(t)
	tok := token(t, "t1", auth.ScopeHoursWrite)
	do(t, h, http.MethodPost, "/v1/activities", tok, activityBody("d1", "work", monday.Add(5*time.Hour), 14))

	rr := do(t, h, http.MethodGet, "/v1/drivers/d1/daily?date=2026-10-19", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	daily := decode[map[string]any](t, rr)
	require.Equal(t, "2026-10-19", daily["date"])
	require.Equal(t, 14.0, daily["work_hours"])

	rr = do(t, h, http.MethodGet, "/v1/drivers/d1/compliance", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	report := decode[ComplianceResponse](t, rr)
	require.Equal(t, "2026-10-19", report.Date)
	require.Equal(t, compliance.LevelViolation, report.Status.Level)
	require.True(t, report.Status.HasAlert(compliance.AlertDailyWorkExceeded))
	require.Len(t, report.Weekly.DailyStats, 7)
	require.Len(t, report.Fortnight.DailyStats, 14)

	rr = do(t, h, http.MethodGet, "/v1/drivers/d1/compliance?date=19.10.2026", tok, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExportEndpoint(t *testing.T) {
	h := newTestServer(t)
	tok := token(t, "t1", auth.ScopeHoursWrite)
	do(t, h, http.MethodPost, "/v1/activities", tok, activityBody("d1", "driving", monday.Add(2*time.Hour), 3))

	rr := do(t, h, http.MethodGet, "/v1/drivers/d1/export?from=2026-10-19&to=2026-10-19", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "d1_2026-10-19_2026-10-19.csv")
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasSuffix(lines[1], ",2026-10-19,02:00,05:00,driving,3.00,true,true,false,true"), lines[1])

	rr = do(t, h, http.MethodGet, "/v1/drivers/d1/export?from=2026-10-19&to=2026-10-19&format=json", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[ExportResponse](t, rr)
	require.Len(t, body.Rows, 1)
	require.True(t, body.Rows[0].NightWork)

	rr = do(t, h, http.MethodGet, "/v1/drivers/d1/export?from=2026-10-20&to=2026-10-19", tok, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/drivers/d1/export?format=xlsx", tok, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestExportLogsCSVWriteFailure(t *testing.T) {
	svc := domain.NewService(memory.NewRepository(), compliance.NewCalendar(time.UTC),
		domain.WithClock(func() time.Time { return monday.Add(20 * time.Hour) }),
		domain.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	_, _, err := svc.LogActivity(context.Background(), domain.LogActivityInput{
		TenantID:  "t1",
		DriverID:  "d1",
		Type:      compliance.ActivityDriving,
		StartedAt: monday.Add(6 * time.Hour),
		EndedAt:   monday.Add(9 * time.Hour),
	})
	require.NoError(t, err)

	var logs bytes.Buffer
	mux := http.NewServeMux()
	NewHandler(svc, WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))).RegisterRoutes(mux)
	h := auth.NewMiddleware(authCfg).Wrap(mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/drivers/d1/export?from=2026-10-19&to=2026-10-19", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "t1", auth.ScopeHoursRead))
	w := failingWriter{httptest.NewRecorder()}
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, logs.String(), "export write failed")
	require.Contains(t, logs.String(), "connection reset")
	require.Contains(t, logs.String(), "driver_id=d1")
}
