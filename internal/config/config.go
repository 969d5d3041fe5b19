// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Embedding provider names accepted in EMBEDDING_PROVIDER.
const (
	ProviderSentenceTransformers = "sentence-transformers"
	ProviderOpenAI               = "openai"
	ProviderGoogle               = "google"
	ProviderOllama               = "ollama"
	ProviderMock                 = "mock"
)

const (
	defaultPort                = "5000"
	defaultMaxRequestBodyBytes = 1 << 20
	defaultShutdownTimeout     = 30 * time.Second
	maxDefaultWorkers          = 4
)

// Config holds all application configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// MaxRequestBodyBytes caps request bodies; 0 or negative disables the limit.
	MaxRequestBodyBytes int64

	EmbeddingProvider       string
	EmbeddingModel          string
	EmbeddingProviderAPIKey string
	EmbeddingBaseURL        string
	EmbeddingDimensions     int

	// EmbeddingRateLimit is outbound provider calls per second for remote providers (0 = unlimited).
	EmbeddingRateLimit float64

	// Local sentence-transformers worker pool
	EmbeddingWorkers  int
	EmbeddingCacheDir string
	EmbeddingPython   string
	EmbeddingDevice   string

	// EmbeddingSkipSetup runs workers on EMBEDDING_PYTHON directly instead of a managed venv.
	EmbeddingSkipSetup bool

	MetricsEnabled     bool
	OtelTracesExporter string
	ShutdownTimeout    time.Duration
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64 retrieves an environment variable as an int64 or returns a default value.
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBool retrieves an environment variable as a bool ("true", "1", ...) or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration retrieves an environment variable as a duration ("30s", "1m") or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// defaultWorkers sizes the local pool from the CPU count. Each worker holds its own
// model copy, so the default stays small.
func defaultWorkers() int {
	return min(max(runtime.NumCPU()/2, 1), maxDefaultWorkers)
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "similarity")
	}

	return filepath.Join(home, ".cache", "similarity")
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables.
// EMBEDDING_PROVIDER_API_KEY is required for the openai and google providers.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:                    getEnv("PORT", defaultPort),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "text")),
		MaxRequestBodyBytes:     getEnvAsInt64("MAX_REQUEST_BODY_BYTES", defaultMaxRequestBodyBytes),
		EmbeddingProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMBEDDING_PROVIDER", ProviderSentenceTransformers))),
		EmbeddingModel:          strings.TrimSpace(os.Getenv("EMBEDDING_MODEL")),
		EmbeddingProviderAPIKey: os.Getenv("EMBEDDING_PROVIDER_API_KEY"),
		EmbeddingBaseURL:        strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL")),
		EmbeddingDimensions:     getEnvAsInt("EMBEDDING_DIMENSIONS", 0),
		EmbeddingRateLimit:      getEnvAsFloat("EMBEDDING_RATE_LIMIT", 0),
		EmbeddingWorkers:        getEnvAsInt("EMBEDDING_WORKERS", defaultWorkers()),
		EmbeddingCacheDir:       getEnv("EMBEDDING_CACHE_DIR", defaultCacheDir()),
		EmbeddingPython:         getEnv("EMBEDDING_PYTHON", "python3"),
		EmbeddingDevice:         strings.TrimSpace(os.Getenv("EMBEDDING_DEVICE")),
		EmbeddingSkipSetup:      getEnvAsBool("EMBEDDING_SKIP_SETUP", false),
		MetricsEnabled:          getEnvAsBool("METRICS_ENABLED", false),
		OtelTracesExporter:      strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_TRACES_EXPORTER"))),
		ShutdownTimeout:         getEnvAsDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.EmbeddingProvider {
	case ProviderOpenAI, ProviderGoogle:
		if c.EmbeddingProviderAPIKey == "" {
			return fmt.Errorf("EMBEDDING_PROVIDER_API_KEY is required for provider %q", c.EmbeddingProvider)
		}
	case ProviderSentenceTransformers, ProviderOllama, ProviderMock:
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q (want sentence-transformers, openai, google, ollama or mock)",
			c.EmbeddingProvider)
	}

	if c.EmbeddingDimensions < 0 {
		return errors.New("EMBEDDING_DIMENSIONS must not be negative")
	}

	if c.EmbeddingRateLimit < 0 {
		return errors.New("EMBEDDING_RATE_LIMIT must not be negative")
	}

	if c.EmbeddingWorkers <= 0 {
		return errors.New("EMBEDDING_WORKERS must be a positive integer")
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	switch c.OtelTracesExporter {
	case "", "none", "otlp", "stdout":
	default:
		return fmt.Errorf("OTEL_TRACES_EXPORTER must be otlp, stdout or empty, got %q", c.OtelTracesExporter)
	}

	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be a positive duration")
	}

	return nil
}
