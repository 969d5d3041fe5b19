package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		shouldSet    bool
		want         int
	}{
		{
			name:         "returns environment variable as int when set with valid integer",
			key:          "TEST_INT_VAR",
			defaultValue: 100,
			envValue:     "200",
			shouldSet:    true,
			want:         200,
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_INT_VAR_MISSING",
			defaultValue: 100,
			envValue:     "",
			shouldSet:    false,
			want:         100,
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_INT_VAR_EMPTY",
			defaultValue: 100,
			envValue:     "",
			shouldSet:    true,
			want:         100,
		},
		{
			name:         "returns default when environment variable is not a valid integer",
			key:          "TEST_INT_VAR_INVALID",
			defaultValue: 100,
			envValue:     "not_a_number",
			shouldSet:    true,
			want:         100,
		},
		{
			name:         "handles negative integers",
			key:          "TEST_INT_VAR_NEGATIVE",
			defaultValue: 100,
			envValue:     "-50",
			shouldSet:    true,
			want:         -50,
		},
		{
			name:         "handles zero",
			key:          "TEST_INT_VAR_ZERO",
			defaultValue: 100,
			envValue:     "0",
			shouldSet:    true,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsTyped(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_FLOAT_BAD", "fast")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BOOL_BAD", "yes please")
	t.Setenv("TEST_DURATION", "45s")
	t.Setenv("TEST_DURATION_BAD", "45")
	t.Setenv("TEST_INT64", "2048")

	assert.InDelta(t, 2.5, getEnvAsFloat("TEST_FLOAT", 1), 0)
	assert.InDelta(t, 1.0, getEnvAsFloat("TEST_FLOAT_BAD", 1), 0)
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
	assert.False(t, getEnvAsBool("TEST_BOOL_BAD", false))
	assert.Equal(t, 45*time.Second, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvAsDuration("TEST_DURATION_BAD", time.Second))
	assert.Equal(t, int64(2048), getEnvAsInt64("TEST_INT64", 1))
	assert.Equal(t, int64(1), getEnvAsInt64("TEST_INT64_MISSING", 1))
}

// clearEnv blanks every variable Load reads; getEnv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"PORT", "LOG_LEVEL", "LOG_FORMAT", "MAX_REQUEST_BODY_BYTES",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_PROVIDER_API_KEY", "EMBEDDING_BASE_URL",
		"EMBEDDING_DIMENSIONS", "EMBEDDING_RATE_LIMIT", "EMBEDDING_WORKERS", "EMBEDDING_CACHE_DIR",
		"EMBEDDING_PYTHON", "EMBEDDING_DEVICE", "EMBEDDING_SKIP_SETUP", "METRICS_ENABLED", "OTEL_TRACES_EXPORTER", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, int64(1<<20), cfg.MaxRequestBodyBytes)
	assert.Equal(t, ProviderSentenceTransformers, cfg.EmbeddingProvider)
	assert.Empty(t, cfg.EmbeddingModel)
	assert.Zero(t, cfg.EmbeddingDimensions)
	assert.Zero(t, cfg.EmbeddingRateLimit)
	assert.GreaterOrEqual(t, cfg.EmbeddingWorkers, 1)
	assert.LessOrEqual(t, cfg.EmbeddingWorkers, maxDefaultWorkers)
	assert.NotEmpty(t, cfg.EmbeddingCacheDir)
	assert.Equal(t, "python3", cfg.EmbeddingPython)
	assert.Empty(t, cfg.EmbeddingDevice)
	assert.False(t, cfg.EmbeddingSkipSetup)
	assert.False(t, cfg.MetricsEnabled)
	assert.Empty(t, cfg.OtelTracesExporter)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("EMBEDDING_PROVIDER", " OpenAI ")
	t.Setenv("EMBEDDING_PROVIDER_API_KEY", "sk-test")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("EMBEDDING_DIMENSIONS", "256")
	t.Setenv("EMBEDDING_RATE_LIMIT", "10")
	t.Setenv("METRICS_ENABLED", "1")
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ProviderOpenAI, cfg.EmbeddingProvider)
	assert.Equal(t, "sk-test", cfg.EmbeddingProviderAPIKey)
	assert.Equal(t, "text-embedding-3-large", cfg.EmbeddingModel)
	assert.Equal(t, 256, cfg.EmbeddingDimensions)
	assert.InDelta(t, 10.0, cfg.EmbeddingRateLimit, 0)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "stdout", cfg.OtelTracesExporter)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "openai without api key",
			env:     map[string]string{"EMBEDDING_PROVIDER": "openai"},
			wantErr: "EMBEDDING_PROVIDER_API_KEY",
		},
		{
			name:    "google without api key",
			env:     map[string]string{"EMBEDDING_PROVIDER": "google"},
			wantErr: "EMBEDDING_PROVIDER_API_KEY",
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"EMBEDDING_PROVIDER": "word2vec"},
			wantErr: "unknown EMBEDDING_PROVIDER",
		},
		{
			name:    "negative dimensions",
			env:     map[string]string{"EMBEDDING_PROVIDER": "mock", "EMBEDDING_DIMENSIONS": "-1"},
			wantErr: "EMBEDDING_DIMENSIONS",
		},
		{
			name:    "negative rate limit",
			env:     map[string]string{"EMBEDDING_PROVIDER": "mock", "EMBEDDING_RATE_LIMIT": "-2"},
			wantErr: "EMBEDDING_RATE_LIMIT",
		},
		{
			name:    "zero workers",
			env:     map[string]string{"EMBEDDING_WORKERS": "0"},
			wantErr: "EMBEDDING_WORKERS",
		},
		{
			name:    "bad log format",
			env:     map[string]string{"LOG_FORMAT": "xml"},
			wantErr: "LOG_FORMAT",
		},
		{
			name:    "bad trace exporter",
			env:     map[string]string{"OTEL_TRACES_EXPORTER": "jaeger"},
			wantErr: "OTEL_TRACES_EXPORTER",
		},
		{
			name:    "bad shutdown timeout",
			env:     map[string]string{"SHUTDOWN_TIMEOUT": "-1s"},
			wantErr: "SHUTDOWN_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_KeylessProviders(t *testing.T) {
	for _, provider := range []string{ProviderSentenceTransformers, ProviderOllama, ProviderMock} {
		t.Run(provider, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("EMBEDDING_PROVIDER", provider)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, provider, cfg.EmbeddingProvider)
		})
	}
}
