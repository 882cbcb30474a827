package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"xyzzy", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestInitLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := initLogger(LogConfig{Level: "debug", Format: "json"}, &buf)

	Component(logger, ComponentService).Debug("Schedule generated", FieldLoanID, "loan-1")

	assert.Contains(t, buf.String(), `"component":"loan_service"`)
	assert.Contains(t, buf.String(), `"loan_id":"loan-1"`)
	assert.Equal(t, logger.Handler(), slog.Default().Handler())
}

func TestInitLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := initLogger(LogConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeError, Outcome(errors.New("boom")))
}

func TestMetricsHandler(t *testing.T) {
	PaymentsRecorded.Inc()

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loan_engine_payments_recorded_total")
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, "loan-engine-test", "test", "")
	require.NoError(t, err)

	_, span := Tracer().Start(ctx, "test-span")
	span.End()

	assert.NoError(t, shutdown(ctx))
}
