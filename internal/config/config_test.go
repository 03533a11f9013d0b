package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/support-console/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "support", cfg.NATSPrefix)
	assert.Equal(t, 5*time.Second, cfg.HistoryTimeout)
	assert.Equal(t, 0.85, cfg.MinConfidence)
	assert.True(t, cfg.AutoResponseEnabled)
	assert.Empty(t, cfg.AllowedIntents)
	assert.Empty(t, cfg.RedisAddr)

	ar := cfg.AutoResponse()
	assert.Len(t, ar.AllowedIntents, 8)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("NATS_PREFIX", "tienda")
	t.Setenv("HISTORY_TIMEOUT", "2s")
	t.Setenv("AUTO_SEND_THRESHOLD", "0.95")
	t.Setenv("AUTO_RESPONSE_INTENTS", "tracking_number, order_status")
	t.Setenv("CORS_ORIGINS", "https://console.example.com")
	t.Setenv("JETSTREAM_ENABLED", "true")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tienda", cfg.NATSPrefix)
	assert.Equal(t, 2*time.Second, cfg.HistoryTimeout)
	assert.Equal(t, 0.95, cfg.AutoSendThreshold)
	assert.True(t, cfg.JetStreamEnabled)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"https://console.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, []model.IntentType{model.IntentTrackingNumber, model.IntentOrderStatus}, cfg.AutoResponse().AllowedIntents)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_url: http://backend:3000\nnats_prefix: fromfile\nredis_addr: redis:6379\n"), 0o600))
	t.Setenv(FileEnv, path)
	t.Setenv("NATS_PREFIX", "fromenv")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:3000", cfg.BackendURL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "fromenv", cfg.NATSPrefix, "environment wins over the file")
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("AUTO_SEND_THRESHOLD", "1.5")
	t.Setenv("LLM_PROVIDER", "mystery")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTO_SEND_THRESHOLD")
	assert.Contains(t, err.Error(), "LLM_PROVIDER")
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
