// Package mail relays inbound project mail notifications to Discord.
package mail

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"modrelay/internal/config"
	"modrelay/internal/discord"
	"modrelay/internal/types"
)

// colorMail is the embed color for relayed mail (teal).
const colorMail = 0x00897B

// DestinationName is the logical destination inbound mail is posted to.
const DestinationName = "mail"

// Message is the decoded inbound mail notification. The mail provider's
// forwarding hook posts these as JSON.
type Message struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Date    string `json:"date"` // RFC3339, optional
}

// Decode parses an inbound mail notification body. A mail without a subject
// and body is rejected; everything else gets defaults.
func Decode(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPayload,
			"malformed mail notification body", err)
	}
	if strings.TrimSpace(msg.Subject) == "" && strings.TrimSpace(msg.Body) == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField,
			"mail notification has neither subject nor body", nil)
	}
	return &msg, nil
}

// NewTemplate builds the mail relay template function.
func NewTemplate(cfg config.DiscordConfig) (func(m *Message) (string, *discord.Message, discord.SendOptions), error) {
	destination, err := cfg.DestinationURL(DestinationName)
	if err != nil {
		return nil, err
	}
	mention := cfg.MentionFor(DestinationName)

	return func(m *Message) (string, *discord.Message, discord.SendOptions) {
		from := strings.TrimSpace(m.From)
		if from == "" {
			from = "Unknown User"
		}
		subject := strings.TrimSpace(m.Subject)
		if subject == "" {
			subject = "(no subject)"
		}

		content := fmt.Sprintf("New mail from **%s**", from)
		if mention != "" {
			content = mention + " " + content
		}

		embed := discord.Embed{
			Title:       subject,
			Description: discord.TruncateDescription(m.Body),
			Color:       colorMail,
			Fields: []discord.Field{
				{Name: "From", Value: from, Inline: true},
			},
			Footer: &discord.Footer{Text: cfg.FooterText},
		}
		if ts, err := time.Parse(time.RFC3339, m.Date); err == nil {
			embed.Timestamp = ts.UTC().Format(time.RFC3339)
		}

		msg := &discord.Message{
			Username:  cfg.Username,
			AvatarURL: cfg.AvatarURL,
			Content:   content,
			Embeds:    []discord.Embed{embed},
		}
		return destination, msg, discord.DefaultSendOptions()
	}, nil
}
