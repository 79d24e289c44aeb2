package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COOKIE_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.HTTPPort)
	assert.Equal(t, "sessionId", cfg.SessionCookieName)
	assert.Equal(t, "onroad", cfg.RequiredRole)
	assert.Equal(t, 2*time.Second, cfg.SessionLookupTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(65536), cfg.MaxMessageSize)
}

func TestLoadRequiresCookieSecret(t *testing.T) {
	t.Setenv("COOKIE_SECRET", "")
	os.Unsetenv("COOKIE_SECRET")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoadFromEnvFile(t *testing.T) {
	t.Setenv("COOKIE_SECRET", "from-env")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT=4000\nWS_PING_INTERVAL=5s\nREQUIRED_ROLE=admin\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("HTTP_PORT")
		os.Unsetenv("WS_PING_INTERVAL")
		os.Unsetenv("REQUIRED_ROLE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
	assert.Equal(t, "admin", cfg.RequiredRole)
	// godotenv never overrides variables that are already set.
	assert.Equal(t, "from-env", cfg.CookieSecret)
}

func TestLoadRejectsPingSlowerThanRead(t *testing.T) {
	t.Setenv("COOKIE_SECRET", "s3cret")
	t.Setenv("WS_PING_INTERVAL", "90s")
	t.Setenv("WS_READ_TIMEOUT", "60s")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
