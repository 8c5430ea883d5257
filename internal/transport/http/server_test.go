package httptransport

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewServerDefaults(t *testing.T) {
	srv := NewServer(ServerConfig{Address: ":0"}, http.NotFoundHandler())
	require.Equal(t, 10*time.Second, srv.ReadTimeout)
	require.Equal(t, 30*time.Second, srv.WriteTimeout)
	require.Equal(t, 60*time.Second, srv.IdleTimeout)
}

func TestLogRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := LogRequests(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/activities", nil))

	require.Contains(t, buf.String(), `"status":418`)
	require.Contains(t, buf.String(), `"bytes":15`)
	require.Contains(t, buf.String(), `"path":"/v1/activities"`)
}

func TestCORS(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	rr := httptest.NewRecorder()
	CORS("https://fleet.example", next).ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/v1/activities", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "https://fleet.example", rr.Header().Get("Access-Control-Allow-Origin"))
	require.False(t, called)

	rr = httptest.NewRecorder()
	CORS("", next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, called)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
