// Package config loads dueue's configuration from environment variables.
// HTTP_PORT and DURABILITY_ENGINE are always required; the POSTGRES_*
// variables are required only when DURABILITY_ENGINE is postgres. Config
// errors are fatal at startup and never raised again.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tombailey/dueue/internal/apperrors"
)

// DurabilityEngine selects which durable.Store backs the queue engine.
type DurabilityEngine string

const (
	Memory   DurabilityEngine = "memory"
	Postgres DurabilityEngine = "postgres"
)

// ParseDurabilityEngine parses a DurabilityEngine case-insensitively,
// mirroring the original implementation's ascii_case_insensitive enum.
func ParseDurabilityEngine(raw string) (DurabilityEngine, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(Memory):
		return Memory, nil
	case string(Postgres):
		return Postgres, nil
	default:
		return "", &apperrors.ConfigError{Message: fmt.Sprintf("invalid DURABILITY_ENGINE %q, expected memory or postgres", raw)}
	}
}

// PostgresConfig holds the connection parameters for the postgres backend.
type PostgresConfig struct {
	Host     string
	Port     uint16
	User     string
	Password string
	Database string
}

// RedisConfig holds the connection parameters for the optional cross-instance
// notifier. A nil *RedisConfig means no notifier is configured.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config is dueue's fully resolved, validated configuration.
type Config struct {
	HTTPPort         uint16
	DurabilityEngine DurabilityEngine
	LogLevel         string
	Postgres         *PostgresConfig
	Redis            *RedisConfig
}

func requireEnvVar(name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", &apperrors.ConfigError{Message: fmt.Sprintf("missing required environment variable %s", name)}
	}
	return value, nil
}

func envVarOrDefault(name, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}

// Load reads and validates dueue's configuration from the environment.
func Load() (*Config, error) {
	portRaw, err := requireEnvVar("HTTP_PORT")
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portRaw, 10, 16)
	if err != nil {
		return nil, &apperrors.ConfigError{Message: fmt.Sprintf("invalid HTTP_PORT %q", portRaw)}
	}

	engineRaw, err := requireEnvVar("DURABILITY_ENGINE")
	if err != nil {
		return nil, err
	}
	engine, err := ParseDurabilityEngine(engineRaw)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:         uint16(port),
		DurabilityEngine: engine,
		LogLevel:         envVarOrDefault("LOG_LEVEL", "info"),
	}

	if engine == Postgres {
		pg, err := loadPostgresConfig()
		if err != nil {
			return nil, err
		}
		cfg.Postgres = pg
	}

	if redisAddr := envVarOrDefault("REDIS_ADDR", ""); redisAddr != "" {
		db, err := strconv.Atoi(envVarOrDefault("REDIS_DB", "0"))
		if err != nil {
			return nil, &apperrors.ConfigError{Message: fmt.Sprintf("invalid REDIS_DB %q", os.Getenv("REDIS_DB"))}
		}
		cfg.Redis = &RedisConfig{
			Addr:     redisAddr,
			Password: envVarOrDefault("REDIS_PASSWORD", ""),
			DB:       db,
		}
	}

	return cfg, nil
}

func loadPostgresConfig() (*PostgresConfig, error) {
	host, err := requireEnvVar("POSTGRES_HOST")
	if err != nil {
		return nil, err
	}
	portRaw, err := requireEnvVar("POSTGRES_PORT")
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portRaw, 10, 16)
	if err != nil {
		return nil, &apperrors.ConfigError{Message: fmt.Sprintf("invalid POSTGRES_PORT %q", portRaw)}
	}
	user, err := requireEnvVar("POSTGRES_USER")
	if err != nil {
		return nil, err
	}
	password, err := requireEnvVar("POSTGRES_PASSWORD")
	if err != nil {
		return nil, err
	}
	database, err := requireEnvVar("POSTGRES_DATABASE")
	if err != nil {
		return nil, err
	}

	return &PostgresConfig{
		Host:     host,
		Port:     uint16(port),
		User:     user,
		Password: password,
		Database: database,
	}, nil
}
