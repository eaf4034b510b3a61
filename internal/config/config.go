// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// database (optional audit mirror + run history)
	DatabaseURL string
	HistoryDSN  string

	// nats
	NatsURL string

	// microsoft graph
	GraphBaseURL      string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphAccessToken  string
	GraphSender       string

	// path to the run YAML
	RunConfigPath string

	// server
	HTTPPort int

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from the environment, after loading .env if present.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		HistoryDSN:        getEnv("HISTORY_DSN", "file:mailmerge.db"),
		NatsURL:           getEnv("NATS_URL", ""),
		GraphBaseURL:      getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		GraphTenantID:     getEnv("GRAPH_TENANT_ID", ""),
		GraphClientID:     getEnv("GRAPH_CLIENT_ID", ""),
		GraphClientSecret: getEnv("GRAPH_CLIENT_SECRET", ""),
		GraphAccessToken:  getEnv("GRAPH_ACCESS_TOKEN", ""),
		GraphSender:       getEnv("GRAPH_SENDER", ""),
		RunConfigPath:     getEnv("RUN_CONFIG", "./run.yaml"),
		HTTPPort:          getEnvInt("HTTP_PORT", 3100),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", "./logs/mailmerge.log"),
	}

	return cfg, nil
}

// UsesClientCredentials reports whether app-only Graph credentials are configured.
func (c *Config) UsesClientCredentials() bool {
	return c.GraphTenantID != "" && c.GraphClientID != "" && c.GraphClientSecret != ""
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
