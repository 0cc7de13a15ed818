package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modrelay/internal/config"
	"modrelay/internal/types"
)

func TestDecode_Valid(t *testing.T) {
	msg, err := Decode([]byte(`{
		"from": "fan@example.com",
		"subject": "Question about Rohan",
		"body": "When will the update land?",
		"date": "2025-06-01T10:00:00Z"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "fan@example.com", msg.From)
	assert.Equal(t, "Question about Rohan", msg.Subject)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{broken`))
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidPayload, appErr.Code)
}

func TestDecode_EmptyMailRejected(t *testing.T) {
	_, err := Decode([]byte(`{"from": "someone@example.com"}`))
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
}

func TestNewTemplate_BuildsMessage(t *testing.T) {
	cfg := config.DiscordConfig{
		Webhooks:   map[string]string{DestinationName: "https://discord.com/api/webhooks/5/mail"},
		Username:   "Courier",
		FooterText: "LotR Middle-earth Mod",
	}

	template, err := NewTemplate(cfg)
	require.NoError(t, err)

	destination, msg, _ := template(&Message{
		From:    "fan@example.com",
		Subject: "Question about Rohan",
		Body:    "When will the update land?",
		Date:    "2025-06-01T10:00:00Z",
	})

	assert.Equal(t, "https://discord.com/api/webhooks/5/mail", destination)
	assert.Contains(t, msg.Content, "fan@example.com")
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "Question about Rohan", msg.Embeds[0].Title)
	assert.Equal(t, "2025-06-01T10:00:00Z", msg.Embeds[0].Timestamp)
}

func TestNewTemplate_Defaults(t *testing.T) {
	cfg := config.DiscordConfig{
		Webhooks: map[string]string{DestinationName: "https://discord.com/api/webhooks/5/mail"},
	}

	template, err := NewTemplate(cfg)
	require.NoError(t, err)

	_, msg, _ := template(&Message{Body: "anonymous note"})
	assert.Contains(t, msg.Content, "Unknown User")
	assert.Equal(t, "(no subject)", msg.Embeds[0].Title)
	assert.Empty(t, msg.Embeds[0].Timestamp)
}

func TestNewTemplate_UnconfiguredDestination(t *testing.T) {
	_, err := NewTemplate(config.DiscordConfig{Webhooks: map[string]string{}})
	assert.Error(t, err)
}
