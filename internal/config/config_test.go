package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_TTL", "")
	t.Setenv("TWILIO_ACCOUNT_SID", "")

	cfg := Load()

	assert.Equal(t, "admin", cfg.AdminUser)
	assert.Equal(t, 60*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.OTPConfigured())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("MAX_UPLOAD_MB", "2")

	cfg := Load()

	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CHALLENGE_TTL", "ten minutes")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	require.Len(t, cfg.Warnings, 2)
	assert.Contains(t, cfg.Warnings[0], "CHALLENGE_TTL")
}

func TestOTPConfiguredNeedsEverySetting(t *testing.T) {
	cfg := App{Twilio: Twilio{AccountSID: "AC1", AuthToken: "tok", VerifySID: "VA1"}}
	assert.False(t, cfg.OTPConfigured())

	cfg.Twilio.AdminPhone = "+15550001111"
	assert.True(t, cfg.OTPConfigured())
}
