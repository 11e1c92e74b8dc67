package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORTAL_ADDR", "PORTAL_ENV", "LOG_LEVEL", "LOG_FORMAT", "REDIS_URL",
		"REDIS_POOL_SIZE", "WIZARD_CACHE_TTL", "WIZARD_CHILD_CACHE_TTL", "SESSION_COOKIE_NAME", "SESSION_COOKIE_SECURE", "SLFT_SITES"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, DefaultCacheTTL, cfg.Wizard.CacheTTL)
	assert.Less(t, cfg.Wizard.ChildCacheTTL, cfg.Wizard.CacheTTL)
	assert.Equal(t, DefaultCookieName, cfg.Session.CookieName)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, []SLfTSite{{ID: "100", Name: "Development Landfill Site"}}, cfg.SLfT.Sites)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORTAL_ADDR", ":9090")
	t.Setenv("WIZARD_CACHE_TTL", "15m")
	t.Setenv("WIZARD_CHILD_CACHE_TTL", "5m")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_POOL_SIZE", "25")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("SLFT_SITES", "100=North Quarry, 200 = South Cell,300")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Wizard.CacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.Wizard.ChildCacheTTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 25, cfg.Redis.PoolSize)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, []SLfTSite{
		{ID: "100", Name: "North Quarry"},
		{ID: "200", Name: "South Cell"},
		{ID: "300", Name: "300"},
	}, cfg.SLfT.Sites)
	require.NoError(t, cfg.Validate())
}

func TestValidateReportsBadValues(t *testing.T) {
	t.Setenv("WIZARD_CACHE_TTL", "soon")
	t.Setenv("REDIS_POOL_SIZE", "lots")
	t.Setenv("LOG_LEVEL", "chatty")
	t.Setenv("PORTAL_ENV", "production")
	t.Setenv("SESSION_COOKIE_SECURE", "")
	t.Setenv("SLFT_SITES", "100=A,100=B")

	cfg := FromEnv()
	assert.Equal(t, DefaultCacheTTL, cfg.Wizard.CacheTTL, "unparsable duration falls back to the default")

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"WIZARD_CACHE_TTL", "REDIS_POOL_SIZE", "LOG_LEVEL", "SESSION_COOKIE_SECURE", "SLFT_SITES"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateKeepsChildrenShorterLived(t *testing.T) {
	t.Setenv("WIZARD_CACHE_TTL", "30m")
	t.Setenv("WIZARD_CHILD_CACHE_TTL", "45m")

	err := FromEnv().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WIZARD_CHILD_CACHE_TTL 45m0s must not exceed WIZARD_CACHE_TTL 30m0s")

	t.Setenv("WIZARD_CHILD_CACHE_TTL", "30m")
	assert.NoError(t, FromEnv().Validate())
}
