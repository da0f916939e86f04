package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("POSTGRES_CONN_STR", "postgres://localhost:5432/findmate")
	t.Setenv("JWT_SECRET", "secret")
}

func TestDefaults_SetsExpectedValues(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "findmate", cfg.MongoDatabase)
	assert.Equal(t, 25*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 50, cfg.MessagePreviewLength)
	assert.Equal(t, 16, cfg.StreamBufferSize)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("HEARTBEAT_INTERVAL", "0s")
	t.Setenv("STREAM_BUFFER_SIZE", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "postgres://localhost:5432/findmate", cfg.PostgresURL)
	assert.Equal(t, time.Duration(0), cfg.HeartbeatInterval)
	assert.Equal(t, 4, cfg.StreamBufferSize)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	content := `
port: "7000"
log_level: debug
mongo_database: campus
heartbeat_interval: 10s
message_preview_length: 80
`
	path := filepath.Join(t.TempDir(), "findmate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	setRequiredEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "campus", cfg.MongoDatabase)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 80, cfg.MessagePreviewLength)
}

func TestLoad_MissingRequiredFails(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("POSTGRES_CONN_STR", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("FIREBASE_CREDENTIALS_PATH", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad duration", key: "HEARTBEAT_INTERVAL", val: "soon"},
		{name: "bad int", key: "STREAM_BUFFER_SIZE", val: "many"},
		{name: "bad level", key: "LOG_LEVEL", val: "verbose"},
		{name: "zero buffer", key: "STREAM_BUFFER_SIZE", val: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFileFails(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}
