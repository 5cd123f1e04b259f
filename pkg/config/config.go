// Package config loads Ferrous's runtime configuration from
// environment variables. Grounded on postkeys' internal/config/config.go:
// the same getEnv/getEnvInt/getEnvBool/getEnvDuration helper shape, a
// flat Config struct, narrowed to the fields the executor and server
// actually consume -- no cache-distributed-invalidation or SQL/RESP
// trace-level knobs, since Ferrous has no query-result cache and no
// SQL layer of its own to trace.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/iGentAI/ferrous/pkg/resource"
)

// Config holds every environment-tunable knob ferrous-server and
// ferrous-eval need.
type Config struct {
	ListenAddr  string
	MetricsAddr string

	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGDatabase string
	PGSSLMode  string

	Limits resource.Limits

	VMPoolSize int

	Debug bool
}

// Load reads configuration from the environment, falling back to
// defaults matching spec.md §4.9/§4.10 (1000-instruction check
// interval, 8-VM pool) where the spec names a concrete number.
func Load() *Config {
	return &Config{
		ListenAddr:  getEnv("FERROUS_LISTEN_ADDR", ":6380"),
		MetricsAddr: getEnv("FERROUS_METRICS_ADDR", ":9090"),

		PGHost:     getEnv("PG_HOST", "localhost"),
		PGPort:     getEnvInt("PG_PORT", 5432),
		PGUser:     getEnv("PG_USER", "postgres"),
		PGPassword: getEnv("PG_PASSWORD", "postgres"),
		PGDatabase: getEnv("PG_DATABASE", "ferrous"),
		PGSSLMode:  getEnv("PG_SSLMODE", "disable"),

		Limits: resource.Limits{
			MaxInstructions: int64(getEnvInt("FERROUS_MAX_INSTRUCTIONS", 100_000_000)),
			MaxCallDepth:    getEnvInt("FERROUS_MAX_CALL_DEPTH", 200),
			Timeout:         getEnvDuration("FERROUS_SCRIPT_TIMEOUT", 5*time.Second),
			CheckInterval:   int64(getEnvInt("FERROUS_CHECK_INTERVAL", resource.DefaultCheckInterval)),
		},

		VMPoolSize: getEnvInt("FERROUS_VM_POOL_SIZE", 8),

		Debug: getEnvBool("FERROUS_DEBUG", false),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
