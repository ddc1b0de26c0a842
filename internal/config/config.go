// Package config reads monitor settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	DBPath         string
	BusyTimeout    time.Duration
	ObserverBuffer int

	// WebDir is served only when ServeClient is set.
	WebDir      string
	ServeClient bool

	LogLevel string

	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool
}

// Load reads .env (when present) and the environment, then validates.
// Variables already set in the environment win over .env.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads the environment without touching .env or validating.
func FromEnv() Config {
	addr := envStr("MONITOR_HTTP_ADDR", "")
	if addr == "" {
		if port := envStr("MONITOR_PORT", envStr("TASKPLEX_MONITOR_PORT", "")); port != "" {
			addr = ":" + port
		}
	}
	if addr == "" {
		addr = ":4444"
	}
	return Config{
		HTTPAddr:       addr,
		DBPath:         envStr("MONITOR_DB_PATH", envStr("TASKPLEX_MONITOR_DB", "taskplex-monitor.db")),
		BusyTimeout:    envDuration("MONITOR_BUSY_TIMEOUT", 5*time.Second),
		ObserverBuffer: envInt("MONITOR_OBSERVER_BUFFER", 64),
		WebDir:         envStr("MONITOR_WEB_DIR", "client/dist"),
		ServeClient:    envBool("SERVE_CLIENT", false),
		LogLevel:       envStr("MONITOR_LOG_LEVEL", "info"),
		OTELEndpoint:   envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:    envStr("OTEL_SERVICE_NAME", "taskplex-monitor"),
		OTELInsecure:   envBool("MONITOR_OTEL_INSECURE", false),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("config: MONITOR_HTTP_ADDR is required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("config: MONITOR_DB_PATH is required")
	}
	if c.BusyTimeout <= 0 {
		return fmt.Errorf("config: MONITOR_BUSY_TIMEOUT must be positive")
	}
	if c.ObserverBuffer <= 0 {
		return fmt.Errorf("config: MONITOR_OBSERVER_BUFFER must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug|info|warn|error onto a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown MONITOR_LOG_LEVEL %q", raw)
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
