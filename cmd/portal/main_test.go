package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/config"
)

func TestFlowsCheck(t *testing.T) {
	for _, key := range []string{"PORTAL_ADDR", "PORTAL_ENV", "LOG_LEVEL", "LOG_FORMAT", "REDIS_POOL_SIZE",
		"WIZARD_CACHE_TTL", "WIZARD_CHILD_CACHE_TTL", "SESSION_COOKIE_SECURE", "SLFT_SITES"} {
		t.Setenv(key, "")
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"flows", "check"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	for _, flow := range []string{"lbtt:", "lbtt/party:", "lbtt/property:", "slft:", "slft/waste:"} {
		assert.Contains(t, out.String(), flow)
	}
	assert.Contains(t, out.String(), "lbtt: start /lbtt/return_type")
	assert.Contains(t, out.String(), "every step has a handler")

	t.Run("a broken configuration fails the check", func(t *testing.T) {
		t.Setenv("SLFT_SITES", "100=A,100=B")
		rootCmd.SetArgs([]string{"flows", "check"})
		assert.Error(t, rootCmd.Execute())
	})
}

func TestServeFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORTAL_ADDR", ":8080")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "")
	require.NoError(t, serveCmd.Flags().Parse([]string{"--addr", ":9000", "--log-format", "TEXT"}))

	cfg := config.FromEnv()
	applyServeFlags(serveCmd, &cfg)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "untouched flags keep the environment value")
}
