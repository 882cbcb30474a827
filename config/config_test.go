package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/events"
	"github.com/warp/loan-engine/repayment"
)

func validConfig() Config {
	return Config{
		Port:            "8080",
		DataBackend:     BackendMemory,
		RepaymentPolicy: "term_reduction",
		DefaultDayCount: "30/360",
		OverdueInterval: time.Hour,
		LogLevel:        "info",
		LogFormat:       "json",
		EventsBackend:   events.BackendLog,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errorString string
	}{
		{name: "valid memory config", mutate: func(c *Config) {}},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "unknown data backend",
			mutate:      func(c *Config) { c.DataBackend = "postgres" },
			errorString: "invalid data backend 'postgres'",
		},
		{
			name:        "sqlite without path",
			mutate:      func(c *Config) { c.DataBackend = BackendSQLite },
			errorString: "SQLite database path cannot be empty",
		},
		{
			name:        "unknown repayment policy",
			mutate:      func(c *Config) { c.RepaymentPolicy = "skip_next" },
			errorString: `unknown repayment policy "skip_next"`,
		},
		{
			name:        "unknown day count",
			mutate:      func(c *Config) { c.DefaultDayCount = "ACT/365" },
			errorString: "day_count_convention",
		},
		{
			name:        "overdue interval too short",
			mutate:      func(c *Config) { c.OverdueInterval = time.Millisecond },
			errorString: "must be at least 1 second",
		},
		{name: "overdue job disabled", mutate: func(c *Config) { c.OverdueInterval = 0 }},
		{
			name:        "bad log format",
			mutate:      func(c *Config) { c.LogFormat = "xml" },
			errorString: "invalid log format 'xml'",
		},
		{
			name: "amqp with bad scheme",
			mutate: func(c *Config) {
				c.EventsBackend = events.BackendAMQP
				c.AMQPURL = "http://localhost"
				c.AMQPExchange = "loans"
			},
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name: "kafka without brokers",
			mutate: func(c *Config) {
				c.EventsBackend = events.BackendKafka
				c.KafkaTopic = "loan-events"
			},
			errorString: "at least one Kafka broker is required",
		},
		{
			name:        "unknown events backend",
			mutate:      func(c *Config) { c.EventsBackend = "nats" },
			errorString: "invalid events backend 'nats'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errorString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestConfig_ValidateCollectsEveryError(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"
	cfg.LogLevel = "loud"
	cfg.EventsBackend = "nats"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
	assert.Contains(t, err.Error(), "invalid log level")
	assert.Contains(t, err.Error(), "invalid events backend")
}

func TestConfig_ValidateCreatesSQLiteDir(t *testing.T) {
	cfg := validConfig()
	cfg.DataBackend = BackendSQLite
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "nested", "loans.db")

	require.NoError(t, cfg.Validate())
	assert.DirExists(t, filepath.Dir(cfg.SQLiteDBPath))
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("REPAYMENT_POLICY", "reduce_payment")
	t.Setenv("OVERDUE_INTERVAL", "15m")
	t.Setenv("EVENTS_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CORS_ORIGINS", "https://app.example.com")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.DataBackend)
	assert.Equal(t, repayment.ReducePayment, cfg.Policy())
	assert.Equal(t, 15*time.Minute, cfg.OverdueInterval)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)

	ev := cfg.Events()
	assert.Equal(t, events.BackendKafka, ev.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, ev.Kafka.Brokers)
	assert.Equal(t, "loan-events", ev.Kafka.Topic)
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATA_BACKEND", "REPAYMENT_POLICY", "OVERDUE_INTERVAL", "LOG_LEVEL", "LOG_FORMAT", "DEFAULT_DAY_COUNT", "EVENTS_BACKEND", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.DataBackend)
	assert.Equal(t, repayment.TermReduction, cfg.Policy())
	assert.Equal(t, time.Hour, cfg.OverdueInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "json", cfg.Log().Format)
	assert.NoError(t, cfg.Validate())
}
