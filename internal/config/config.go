// Package config defines the global configuration structure for the relay.
// Configuration is loaded once at process initialization and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating
// code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"modrelay/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the relay. It is populated
// once during process initialization and never modified. Sub-components
// receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Discord  DiscordConfig
	GitHub   GitHubConfig
	Sources  SourceConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// DatabaseConfig holds the relay-state store connection parameters.
// An empty URL selects the in-memory store (local development, tests).
type DatabaseConfig struct {
	URL      SecretString  `envconfig:"DATABASE_URL"`
	MaxConns int           `envconfig:"DB_MAX_CONNS" default:"4"`
	Timeout  time.Duration `envconfig:"DB_TIMEOUT" default:"5s"`
}

// NameTable is a logical-name lookup decoded from comma-separated "name=value"
// pairs. envconfig's built-in map syntax splits entries on every colon, which
// webhook URLs contain, so this type carries its own decoder.
type NameTable map[string]string

// Decode implements envconfig.Decoder.
func (m *NameTable) Decode(value string) error {
	result := map[string]string{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, val, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid entry %q (want name=value)", pair)
		}
		result[strings.TrimSpace(name)] = strings.TrimSpace(val)
	}
	*m = result
	return nil
}

// DiscordConfig holds outbound webhook delivery settings: the destination
// table, role mention table, and the delivery client's retry parameters.
type DiscordConfig struct {
	// Webhooks maps logical destination names to webhook URLs.
	// Env format: "news=https://discord.com/api/webhooks/1/a,changelog=https://..."
	Webhooks NameTable `envconfig:"DISCORD_WEBHOOKS" validate:"required"`

	// RoleMentions maps logical ping names to raw mention strings.
	// Env format: "release=<@&123456789>,news=<@&987654321>"
	RoleMentions NameTable `envconfig:"DISCORD_ROLE_MENTIONS"`

	// FeedThreadName, when set, routes feed posts into one forum thread with
	// this name. The thread id returned on creation is persisted so later
	// posts land in the same thread.
	FeedThreadName string `envconfig:"DISCORD_FEED_THREAD_NAME"`

	Username   string `envconfig:"DISCORD_USERNAME" default:"Middle-earth Courier"`
	AvatarURL  string `envconfig:"DISCORD_AVATAR_URL"`
	FooterText string `envconfig:"DISCORD_FOOTER_TEXT" default:"LotR Middle-earth Mod"`

	UserAgent  string        `envconfig:"DISCORD_USER_AGENT" default:"modrelay/1.0"`
	Timeout    time.Duration `envconfig:"DISCORD_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"DISCORD_MAX_RETRIES" default:"3"`

	// PlaceholderMarker flags destination URLs that were never configured.
	// Deliveries to URLs containing the marker fail fast without a network call.
	PlaceholderMarker string `envconfig:"DISCORD_PLACEHOLDER_MARKER" default:"INSERT_WEBHOOK"`
}

// GitHubConfig holds inbound webhook verification and API access settings.
type GitHubConfig struct {
	// WebhookSecret is the shared secret for X-Hub-Signature-256 verification.
	// Empty disables verification (local development only).
	WebhookSecret SecretString `envconfig:"GITHUB_WEBHOOK_SECRET"`

	// APIToken authorizes the artifact list/download calls.
	APIToken   SecretString `envconfig:"GITHUB_API_TOKEN"`
	APIBaseURL string       `envconfig:"GITHUB_API_URL" default:"https://api.github.com" validate:"url"`
}

// SourceConfig holds the polled source endpoints and poll bounds.
type SourceConfig struct {
	FeedURL string `envconfig:"FEED_URL" validate:"omitempty,url"`
	NewsURL string `envconfig:"NEWS_URL" validate:"omitempty,url"`

	// MaxItemsPerRun caps deliveries per poll so a long backlog cannot flood
	// a destination channel in one run.
	MaxItemsPerRun int           `envconfig:"POLL_MAX_ITEMS" default:"5"`
	Timeout        time.Duration `envconfig:"SOURCE_TIMEOUT" default:"15s"`
	UserAgent      string        `envconfig:"SOURCE_USER_AGENT" default:"modrelay-poller/1.0"`
}

// MetricsConfig holds delivery telemetry settings. Disabled by default; when
// enabled, delivery outcomes are published to CloudWatch.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"ModRelay"`
}

// DestinationURL resolves a logical destination name to its webhook URL.
func (c DiscordConfig) DestinationURL(name string) (string, error) {
	url, ok := c.Webhooks[name]
	if !ok {
		return "", fmt.Errorf("destination %q is not configured", name)
	}
	return url, nil
}

// MentionFor returns the configured mention string for a logical ping name,
// or the empty string when no mention is configured.
func (c DiscordConfig) MentionFor(name string) string {
	return c.RoleMentions[name]
}
