package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "BRAND_NAME", "COMPLETION_TIMEOUT", "WS_PING_INTERVAL", "AUTH_REQUIRED", "NATS_URL", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, StoreMemory, cfg.StoreBackend)
	require.Equal(t, "Scrumpts", cfg.BrandName)
	require.Equal(t, 30*time.Second, cfg.CompletionTimeout)
	require.Equal(t, 30*time.Second, cfg.WSPingInterval)
	require.False(t, cfg.AuthRequired)
	require.Empty(t, cfg.NATSURL)
	require.Nil(t, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("COMPLETION_TIMEOUT", "5s")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("MAX_INFLIGHT_COMPLETIONS", "4")
	t.Setenv("ALLOWED_ORIGINS", "https://scrumpts.in, https://www.scrumpts.in ,")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	require.Equal(t, StoreRedis, cfg.StoreBackend)
	require.Equal(t, 5*time.Second, cfg.CompletionTimeout)
	require.True(t, cfg.AuthRequired)
	require.Equal(t, 4, cfg.MaxInflightCompletions)
	require.Equal(t, []string{"https://scrumpts.in", "https://www.scrumpts.in"}, cfg.AllowedOrigins)
	require.Zero(t, cfg.RedisDB)
}
