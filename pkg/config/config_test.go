package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	require.Equal(t, "http://localhost:4096", cfg.OpenCodeURL)
	require.Equal(t, time.Second, cfg.RenderThrottle)
	require.Equal(t, 5*time.Second, cfg.RenderTextDeleteAfter)
	require.Equal(t, 2500*time.Millisecond, cfg.RenderStatusDeleteAfter)
	require.Equal(t, 50, cfg.RenderMaxLines)
	require.Equal(t, 4000, cfg.MessageLimit)
	require.Equal(t, 100_000, cfg.MentionMaxFileBytes)
	require.Equal(t, "drop", cfg.UnknownEventPolicy)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKENS", "tok1, tok2")
	t.Setenv("ALLOWED_USER_IDS", "123, 456, junk")
	t.Setenv("ADMIN_USER_ID", "789")
	t.Setenv("AUTO_KILL", "true")
	t.Setenv("OPENCODE_SERVER_URL", "http://localhost:9999/")
	t.Setenv("RENDER_THROTTLE_MS", "2000")
	t.Setenv("RENDER_MAX_LINES", "25")
	t.Setenv("UNKNOWN_EVENT_POLICY", "FORMAT")

	cfg := FromEnv()
	require.Equal(t, []string{"tok1", "tok2"}, cfg.BotTokens)
	require.Equal(t, []int64{123, 456}, cfg.AllowedUserIDs)
	require.Equal(t, int64(789), cfg.AdminUserID)
	require.True(t, cfg.AutoKill)
	require.Equal(t, "http://localhost:9999", cfg.OpenCodeURL, "trailing slash is stripped")
	require.Equal(t, 2*time.Second, cfg.RenderThrottle)
	require.Equal(t, 25, cfg.RenderMaxLines)
	require.Equal(t, "format", cfg.UnknownEventPolicy)
}

func TestValidateRequiresToken(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())

	cfg.BotTokens = []string{"tok"}
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	cfg := Default()
	cfg.BotTokens = []string{"tok"}
	cfg.UnknownEventPolicy = "explode"
	require.Error(t, cfg.Validate())
}

func TestAdminFallback(t *testing.T) {
	cfg := Default()
	require.Zero(t, cfg.Admin())

	cfg.AllowedUserIDs = []int64{11, 22}
	require.Equal(t, int64(11), cfg.Admin())

	cfg.AdminUserID = 99
	require.Equal(t, int64(99), cfg.Admin())
}
