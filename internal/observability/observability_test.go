package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/config"
)

func TestNewLoggerJSON(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "JSON"})

	logger.Info("dropped")
	logger.Warn("kept", slog.String("driver_id", "d-1"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "d-1", entry["driver_id"])
	require.Same(t, logger, slog.Default())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel(" Debug "))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestRecordEvaluation(t *testing.T) {
	beforeWarn := testutil.ToFloat64(evaluationsCounter.WithLabelValues(string(compliance.LevelWarning)))
	beforeRest := testutil.ToFloat64(alertsCounter.WithLabelValues(string(compliance.AlertMissingRest)))

	RecordEvaluation(compliance.ComplianceStatus{
		Level:  compliance.LevelWarning,
		Alerts: []compliance.AlertCode{compliance.AlertMissingRest},
	})

	require.Equal(t, beforeWarn+1, testutil.ToFloat64(evaluationsCounter.WithLabelValues(string(compliance.LevelWarning))))
	require.Equal(t, beforeRest+1, testutil.ToFloat64(alertsCounter.WithLabelValues(string(compliance.AlertMissingRest))))
}

func TestRecordActivityPersistedIgnoresZero(t *testing.T) {
	ts := time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC)
	RecordActivityPersisted(ts)
	RecordActivityPersisted(time.Time{})

	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(activityPersistGauge))
}
