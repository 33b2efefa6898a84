// Package config provides configuration loading and validation from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	LogLevel          string        // debug, info, warn, error
	ListenAddr        string        // Websocket + admin listen address (e.g., ":8080")
	MetricsListenAddr string        // Metrics listener address (e.g., "localhost:9090")
	DatabasePath      string        // SQLite database path
	JWTSecret         string        // Required: HMAC secret for dashboard bearer tokens
	DeviceSecret      string        // Shared secret presented by card readers
	DeviceSecretHash  string        // Optional bcrypt hash of the device secret (wins over DeviceSecret)
	HandshakeTimeout  time.Duration // Time a new connection has to authenticate
	GracePeriod       time.Duration // Free re-entry window after an exit (prepaid billing)
	AllowedOrigins    []string      // Websocket origin patterns; empty = same host only
}

// Load parses configuration from environment variables.
// Optional fields fall back to defaults; Validate reports missing secrets.
func Load() (*Config, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	listenAddr := os.Getenv("LISTEN_ADDR")
	metricsListenAddr := os.Getenv("METRICS_LISTEN_ADDR")
	databasePath := os.Getenv("DATABASE_PATH")

	if logLevel == "" {
		logLevel = "info"
	}

	if listenAddr == "" {
		listenAddr = ":8080"
	}

	if metricsListenAddr == "" {
		metricsListenAddr = "localhost:9090"
	}

	if databasePath == "" {
		databasePath = "/data/access.db"
	}

	handshakeTimeout, err := durationEnv("HANDSHAKE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	gracePeriod, err := durationEnv("GRACE_PERIOD", 60*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:          logLevel,
		ListenAddr:        listenAddr,
		MetricsListenAddr: metricsListenAddr,
		DatabasePath:      databasePath,
		JWTSecret:         os.Getenv("JWT_SECRET"),
		DeviceSecret:      os.Getenv("DEVICE_SECRET"),
		DeviceSecretHash:  os.Getenv("DEVICE_SECRET_HASH"),
		HandshakeTimeout:  handshakeTimeout,
		GracePeriod:       gracePeriod,
		AllowedOrigins:    splitList(os.Getenv("WS_ALLOWED_ORIGINS")),
	}

	return cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.DeviceSecret == "" && c.DeviceSecretHash == "" {
		return fmt.Errorf("DEVICE_SECRET or DEVICE_SECRET_HASH environment variable is required")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("HANDSHAKE_TIMEOUT must be positive")
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("GRACE_PERIOD must not be negative")
	}
	return nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return d, nil
}

// splitList turns "a, b,,c" into ["a" "b" "c"].
func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
