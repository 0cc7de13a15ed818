package feeds

import (
	"time"

	"modrelay/internal/config"
	"modrelay/internal/discord"
	"modrelay/internal/ingest"
)

// colorFeed is the embed color for relayed feed entries (blue).
const colorFeed = 0x2196F3

// DestinationName is the logical destination feed items are posted to.
const DestinationName = "feed"

// NewTemplate builds the feed item template. Each entry becomes one embed
// with a link button; an optional role mention configured under "feed" is
// prepended to the content line.
func NewTemplate(cfg config.DiscordConfig) (ingest.Template, error) {
	destination, err := cfg.DestinationURL(DestinationName)
	if err != nil {
		return nil, err
	}
	mention := cfg.MentionFor(DestinationName)

	return func(item ingest.Item) (string, *discord.Message, discord.SendOptions) {
		title := item.Title
		if title == "" {
			title = "New feed entry"
		}

		content := "New post: **" + title + "**"
		if mention != "" {
			content = mention + " " + content
		}

		embed := discord.Embed{
			Title:       title,
			Description: discord.TruncateDescription(item.Body),
			URL:         item.URL,
			Color:       colorFeed,
			Footer:      &discord.Footer{Text: cfg.FooterText},
		}
		if !item.PublishedAt.IsZero() {
			embed.Timestamp = item.PublishedAt.UTC().Format(time.RFC3339)
		}

		msg := &discord.Message{
			Username:  cfg.Username,
			AvatarURL: cfg.AvatarURL,
			Content:   content,
			Embeds:    []discord.Embed{embed},
		}
		if item.URL != "" {
			msg.Components = []discord.Component{
				discord.LinkRow(discord.LinkButton("Read more", item.URL)),
			}
		}

		return destination, msg, discord.DefaultSendOptions()
	}, nil
}
