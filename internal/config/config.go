package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Offset store backends
const (
	OffsetBackendJSON = "json"
	OffsetBackendBolt = "bolt"
)

// Record sinks
const (
	OutputStdout     = "stdout"
	OutputFile       = "file"
	OutputClickHouse = "clickhouse"
)

// Config holds all configuration for the application
type Config struct {
	// Scan jobs and their progress
	JobsFile      string
	OffsetFile    string
	OffsetBackend string // "json" or "bolt"
	LockFile      string // Serializes invocations sharing the offset file; empty disables

	// Where matched records go
	Output     string // "stdout", "file" or "clickhouse"
	OutputFile string // Base path of the daily rotated NDJSON output

	// ClickHouse configuration
	ClickHouseHost      string
	ClickHousePort      int
	ClickHouseDB        string
	ClickHouseTable     string
	ClickHouseBatchSize int

	// Retry settings for ClickHouse
	RetryMaxAttempts    int
	RetryInitialDelayMs int
	RetryMaxDelayMs     int
	RetryMultiplier     float64

	// Observability
	LogLevel        string
	LogFile         string // Base path of the daily rotated log; empty logs to stderr only
	TracingEnabled  bool
	TracingEndpoint string
	TracingProtocol string // "grpc" or "http"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		JobsFile:      getEnv("JOBS_FILE", "configs/jobs.yaml"),
		OffsetFile:    getEnv("OFFSET_FILE", "offsets.json"),
		OffsetBackend: strings.ToLower(getEnv("OFFSET_BACKEND", OffsetBackendJSON)),
		LockFile:      getEnv("LOCK_FILE", ""),

		Output:     strings.ToLower(getEnv("OUTPUT", OutputStdout)),
		OutputFile: getEnv("OUTPUT_FILE", "matches.ndjson"),

		ClickHouseHost:      getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:      getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDB:        getEnv("CLICKHOUSE_DB", "logs"),
		ClickHouseTable:     getEnv("CLICKHOUSE_TABLE", "log_matches"),
		ClickHouseBatchSize: getEnvInt("CLICKHOUSE_BATCH_SIZE", 1000),

		RetryMaxAttempts:    getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelayMs: getEnvInt("RETRY_INITIAL_DELAY_MS", 100),
		RetryMaxDelayMs:     getEnvInt("RETRY_MAX_DELAY_MS", 5000),
		RetryMultiplier:     getEnvFloat("RETRY_MULTIPLIER", 2.0),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
		TracingEnabled:  getEnvBool("TRACING_ENABLED", false),
		TracingEndpoint: getEnv("TRACING_ENDPOINT", ""),
		TracingProtocol: strings.ToLower(getEnv("TRACING_PROTOCOL", "grpc")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OffsetFile == "" {
		return fmt.Errorf("OFFSET_FILE is required")
	}
	switch c.OffsetBackend {
	case OffsetBackendJSON, OffsetBackendBolt:
	default:
		return fmt.Errorf("OFFSET_BACKEND must be %q or %q, got %q", OffsetBackendJSON, OffsetBackendBolt, c.OffsetBackend)
	}

	switch c.Output {
	case OutputStdout:
	case OutputFile:
		if c.OutputFile == "" {
			return fmt.Errorf("OUTPUT_FILE is required when OUTPUT=file")
		}
	case OutputClickHouse:
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required")
		}
		if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouseDB == "" || c.ClickHouseTable == "" {
			return fmt.Errorf("CLICKHOUSE_DB and CLICKHOUSE_TABLE are required")
		}
		if c.ClickHouseBatchSize < 1 {
			return fmt.Errorf("CLICKHOUSE_BATCH_SIZE must be at least 1")
		}
	default:
		return fmt.Errorf("OUTPUT must be one of stdout, file, clickhouse; got %q", c.Output)
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be at least 1")
	}

	if c.TracingEnabled && c.TracingProtocol != "grpc" && c.TracingProtocol != "http" {
		return fmt.Errorf("TRACING_PROTOCOL must be grpc or http")
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
