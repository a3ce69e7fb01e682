package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/leads")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.Equal(t, 3.0, cfg.GetScoreCloseWeight())
	assert.Equal(t, 5, cfg.GetLoyaltyLookback())
	assert.Equal(t, 30*24*time.Hour, cfg.GetInventoryFreshnessWindow())
	assert.Equal(t, "@daily", cfg.GetInventorySweepSpec())
	assert.Equal(t, "MX", cfg.GetPhoneDefaultRegion())
	assert.Equal(t, "changefeed", cfg.GetAsynqQueueName())
	assert.False(t, cfg.IsTelegramEnabled())
	assert.False(t, cfg.IsTrackingEnabled())
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_RejectsNonPositiveCloseWeight(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/leads")
	t.Setenv("SCORE_CLOSE_WEIGHT", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "SCORE_CLOSE_WEIGHT")
}

func TestLoad_TelegramNeedsChat(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/leads")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	_, err := Load()
	assert.ErrorContains(t, err, "TELEGRAM_CHAT_ID")
}

func TestLoad_WildcardOriginAllowsAll(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/leads")
	t.Setenv("CORS_ORIGINS", "https://a.example, *")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GetCORSAllowAll())
	assert.Equal(t, []string{"https://a.example", "*"}, cfg.GetCORSOrigins())
}

func TestTrackingEnabled(t *testing.T) {
	cfg := &Config{MetaPixelID: "1", MetaAccessToken: "t"}
	assert.True(t, cfg.IsTrackingEnabled())
	cfg.MetaAccessToken = ""
	assert.False(t, cfg.IsTrackingEnabled())
}
