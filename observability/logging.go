/*
Package observability sets up logging, metrics and tracing for the engine.

PURPOSE:
  One place that decides how the process reports what it does:
  - logging.go: slog handler selection and shared field names
  - metrics.go: Prometheus counters and the /metrics handler
  - tracing.go: OpenTelemetry tracer provider

USAGE:
  logger := observability.InitLogger(observability.LogConfig{Level: "info", Format: "json"})
  shutdown, err := observability.InitTracing(ctx, "loan-engine", version, cfg.OTELEndpoint)
  defer shutdown(ctx)
  r.Handle("/metrics", observability.MetricsHandler())
*/
package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Field names shared by every log line.
const (
	FieldComponent     = "component"
	FieldLoanID        = "loan_id"
	FieldInstallmentNo = "installment_no"
	FieldRevision      = "revision"
	FieldAmount        = "amount"
	FieldPolicy        = "policy"
	FieldLoanType      = "loan_type"
	FieldScenario      = "scenario"
	FieldEventType     = "event_type"
	FieldCount         = "count"
	FieldError         = "error"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentAPI       = "api"
	ComponentService   = "loan_service"
	ComponentStorage   = "storage"
	ComponentEvents    = "events"
	ComponentScheduler = "scheduler"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "text"
}

// InitLogger builds the process logger and makes it the slog default.
func InitLogger(cfg LogConfig) *slog.Logger {
	return initLogger(cfg, os.Stdout)
}

func initLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a level name to slog.Level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns logger tagged with a component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(FieldComponent, name)
}
