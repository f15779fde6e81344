package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/athena-core/internal/adapters/driven/ai"
	"github.com/custodia-labs/athena-core/internal/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"RUN_MODE", "PORT", "REDIS_URL", "MIN_SEGMENT_SECONDS", "VIDEO_LIMIT", "SIGNED_URL_TTL", "EMBEDDING_PROVIDER"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "all", cfg.RunMode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, domain.DefaultSegmentationPolicy(), cfg.Policy)
	assert.Equal(t, domain.DefaultVideoLimit, cfg.VideoLimit)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
	assert.False(t, cfg.Embedding.IsConfigured())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RUN_MODE", "worker")
	t.Setenv("PORT", "9090")
	t.Setenv("MIN_SEGMENT_SECONDS", "15")
	t.Setenv("MAX_SEGMENT_SECONDS", "45.5")
	t.Setenv("SIMILARITY_THRESHOLD", "0.42")
	t.Setenv("SIGNED_URL_TTL", "30m")
	t.Setenv("TASK_RETENTION", "7200")
	t.Setenv("EMBEDDING_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("ORACLE_PROVIDER", "openai")
	t.Setenv("ORACLE_API_KEY", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg := Load()
	assert.Equal(t, "worker", cfg.RunMode)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, domain.SegmentationPolicy{MinDuration: 15, MaxDuration: 45.5, SimilarityThreshold: 0.42}, cfg.Policy)
	assert.Equal(t, 30*time.Minute, cfg.SignedURLTTL)
	assert.Equal(t, 2*time.Hour, cfg.TaskRetention)
	assert.Equal(t, ai.ProviderGemini, cfg.Embedding.Provider)
	assert.Equal(t, "g-key", cfg.Embedding.APIKey)
	assert.Equal(t, "o-key", cfg.Oracle.APIKey, "oracle falls back to the OpenAI key")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.SchedulerEnabled)
}

func TestLoad_MalformedNumbersUseDefaults(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("SIMILARITY_THRESHOLD", "high")
	t.Setenv("SIGNED_URL_TTL", "soon")

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 0.3, cfg.Policy.SimilarityThreshold)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.RunMode = "batch" }},
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"min above max", func(c *Config) { c.Policy.MinDuration = 90 }},
		{"zero limit", func(c *Config) { c.VideoLimit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{RunMode: "all", Port: 8080, Policy: domain.DefaultSegmentationPolicy(), VideoLimit: 10}
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidInput)
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("segment closed", "video_id", "abc", "chunk_id", 3)

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "video_id=abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "segment closed", entry["msg"])
	assert.Equal(t, float64(3), entry["chunk_id"])
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "athena.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestSetupLogger_NoFile(t *testing.T) {
	logger, cleanup := SetupLogger("", slog.LevelWarn)
	assert.NotNil(t, logger)
	assert.NoError(t, cleanup())
}
