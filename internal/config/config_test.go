package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"MONITOR_HTTP_ADDR", "MONITOR_PORT", "TASKPLEX_MONITOR_PORT", "MONITOR_DB_PATH",
		"TASKPLEX_MONITOR_DB", "MONITOR_BUSY_TIMEOUT", "MONITOR_OBSERVER_BUFFER",
		"MONITOR_WEB_DIR", "SERVE_CLIENT", "MONITOR_LOG_LEVEL",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME", "MONITOR_OTEL_INSECURE",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()
	assert.Equal(t, ":4444", cfg.HTTPAddr)
	assert.Equal(t, "taskplex-monitor.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
	assert.Equal(t, 64, cfg.ObserverBuffer)
	assert.False(t, cfg.ServeClient)
	assert.Equal(t, "taskplex-monitor", cfg.ServiceName)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverridesAndLegacyKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKPLEX_MONITOR_PORT", "5555")
	t.Setenv("TASKPLEX_MONITOR_DB", "/tmp/legacy.db")
	t.Setenv("MONITOR_BUSY_TIMEOUT", "250ms")
	t.Setenv("SERVE_CLIENT", "true")
	t.Setenv("MONITOR_OBSERVER_BUFFER", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, ":5555", cfg.HTTPAddr)
	assert.Equal(t, "/tmp/legacy.db", cfg.DBPath)
	assert.Equal(t, 250*time.Millisecond, cfg.BusyTimeout)
	assert.True(t, cfg.ServeClient)
	assert.Equal(t, 64, cfg.ObserverBuffer)

	t.Setenv("MONITOR_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("MONITOR_DB_PATH", "/tmp/new.db")
	cfg = FromEnv()
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, "/tmp/new.db", cfg.DBPath)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base := FromEnv()

	bad := base
	bad.DBPath = " "
	assert.Error(t, bad.Validate())

	bad = base
	bad.ObserverBuffer = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.BusyTimeout = -time.Second
	assert.Error(t, bad.Validate())

	bad = base
	bad.LogLevel = "loud"
	assert.Error(t, bad.Validate())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}
