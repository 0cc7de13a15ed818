package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimal environment for a successful load.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("DISCORD_WEBHOOKS", "news=https://discord.com/api/webhooks/1/aaa,changelog=https://discord.com/api/webhooks/2/bbb")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Discord.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Discord.Timeout)
	assert.Equal(t, "INSERT_WEBHOOK", cfg.Discord.PlaceholderMarker)
	assert.Equal(t, 5, cfg.Sources.MaxItemsPerRun)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIBaseURL)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_WebhookMapParsing(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	url, err := cfg.Discord.DestinationURL("news")
	require.NoError(t, err)
	assert.Equal(t, "https://discord.com/api/webhooks/1/aaa", url)

	_, err = cfg.Discord.DestinationURL("missing")
	assert.Error(t, err)
}

func TestLoadConfig_MissingWebhooksFails(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("DISCORD_WEBHOOKS", "")

	_, err := LoadConfig()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production-ish")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_InvalidFeedURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FEED_URL", "not a url")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestNameTable_Decode(t *testing.T) {
	var m NameTable
	require.NoError(t, m.Decode("news=https://discord.com/api/webhooks/1/a, changelog=https://discord.com/api/webhooks/2/b"))
	assert.Equal(t, "https://discord.com/api/webhooks/1/a", m["news"])
	assert.Equal(t, "https://discord.com/api/webhooks/2/b", m["changelog"])

	assert.Error(t, m.Decode("entry-without-separator"))
}

func TestMentionFor(t *testing.T) {
	cfg := DiscordConfig{RoleMentions: map[string]string{"release": "<@&42>"}}

	assert.Equal(t, "<@&42>", cfg.MentionFor("release"))
	assert.Empty(t, cfg.MentionFor("unknown"))
}
