package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "./data", cfg.Storage.LocalPath)
	assert.Equal(t, 3600, cfg.Storage.PresignSeconds)
	assert.Equal(t, 24, cfg.Storage.SessionTTLHours)
	assert.Equal(t, 40, cfg.Matching.MinConfidence)
	assert.InDelta(t, 0.70, cfg.Matching.TemplateFuzzyRatio, 0.001)
	assert.Equal(t, 5, cfg.Extraction.SampleRows)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 600, cfg.Cache.TTLSeconds)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestDurationHelpers(t *testing.T) {
	storage := StorageConfig{PresignSeconds: 90, SessionTTLHours: 2}
	assert.Equal(t, 90*time.Second, storage.PresignExpiry())
	assert.Equal(t, 2*time.Hour, storage.SessionTTL())

	cache := CacheConfig{TTLSeconds: 300}
	assert.Equal(t, 5*time.Minute, cache.TTL())
}

func TestLoad(t *testing.T) {
	content := `
server:
  port: 9090
  host: 0.0.0.0
storage:
  type: aws
  upload_bucket: my-uploads
  dynamodb_table: mapping-sessions
matching:
  min_confidence: 55
log_level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "aws", cfg.Storage.Type)
	assert.Equal(t, "my-uploads", cfg.Storage.UploadBucket)
	assert.Equal(t, "mapping-sessions", cfg.Storage.DynamoDBTable)
	assert.Equal(t, 55, cfg.Matching.MinConfidence)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Unset values still get defaults.
	assert.Equal(t, 3600, cfg.Storage.PresignSeconds)
	assert.Equal(t, 5, cfg.Extraction.SampleRows)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromEnvDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Type)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("STORAGE_TYPE", "aws")
	t.Setenv("S3_BUCKET_UPLOADS", "uploads-env")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "aws", cfg.Storage.Type)
	assert.Equal(t, "uploads-env", cfg.Storage.UploadBucket)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestGetHost(t *testing.T) {
	cfg := ServerConfig{Host: "localhost"}
	assert.Equal(t, "localhost", cfg.GetHost())

	t.Setenv("SERVER_HOST", "10.0.0.5")
	assert.Equal(t, "10.0.0.5", cfg.GetHost())

	t.Setenv("AWS_EXECUTION_ENV", "AWS_ECS_FARGATE")
	assert.Equal(t, "0.0.0.0", cfg.GetHost())
}

func TestGetAWSProfile(t *testing.T) {
	cfg := StorageConfig{AWSProfile: "dev"}
	assert.Equal(t, "dev", cfg.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "prod")
	assert.Equal(t, "prod", cfg.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", cfg.GetAWSProfile())
}
