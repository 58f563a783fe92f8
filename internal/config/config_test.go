package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "doloop.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.AIHourlyLimit)
	assert.Equal(t, 20, cfg.AIDailyLimit)
	assert.Equal(t, 100, cfg.AIMonthlyLimit)
	assert.False(t, cfg.AIEnabled())
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("AI_API_KEY", "sk-test")
	t.Setenv("AI_HOURLY_LIMIT", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.True(t, cfg.AIEnabled())
	assert.Equal(t, 2, cfg.AIHourlyLimit)
}

func TestLoad_RequiresSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}
