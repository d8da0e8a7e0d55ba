package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("PORT", "")
	t.Setenv("BODY_LIMIT_BYTES", "")
	t.Setenv("BODY_LIMIT_MB", "")
	t.Setenv("SESSION_BASE_RATE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4*1024*1024, cfg.BodyLimitBytes)
	assert.Equal(t, 55.0, cfg.SessionBaseRate)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("BODY_LIMIT_MB", "2")
	t.Setenv("SESSION_EXTENDED_RATE", "72.5")
	t.Setenv("JOBS_ENABLED", "true")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*1024*1024, cfg.BodyLimitBytes)
	assert.Equal(t, 72.5, cfg.SessionExtendedRate)
	assert.True(t, cfg.JobsEnabled)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestSMTPEnabled(t *testing.T) {
	assert.False(t, Config{}.SMTPEnabled())
	assert.True(t, Config{SMTPHost: "smtp.example.com", MailFromAddress: "info@example.com"}.SMTPEnabled())
}

func TestLoadTimeZone(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("TZ_NAME", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", cfg.TimeZone)
	require.NotNil(t, cfg.Location)

	t.Setenv("TZ_NAME", "Nowhere/Atlantis")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.Location)
}
