package news

import (
	"time"

	"modrelay/internal/config"
	"modrelay/internal/discord"
	"modrelay/internal/ingest"
)

// colorNews is the embed color for relayed news articles (amber).
const colorNews = 0xFFC107

// DestinationName is the logical destination news articles are posted to.
const DestinationName = "news"

// NewTemplate builds the news article template.
func NewTemplate(cfg config.DiscordConfig) (ingest.Template, error) {
	destination, err := cfg.DestinationURL(DestinationName)
	if err != nil {
		return nil, err
	}
	mention := cfg.MentionFor(DestinationName)

	return func(item ingest.Item) (string, *discord.Message, discord.SendOptions) {
		title := item.Title
		if title == "" {
			title = "News update"
		}

		content := "News from the Middle-earth Mod: **" + title + "**"
		if mention != "" {
			content = mention + " " + content
		}

		embed := discord.Embed{
			Title:       title,
			Description: discord.TruncateDescription(item.Body),
			URL:         item.URL,
			Color:       colorNews,
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
				discord.LinkRow(discord.LinkButton("Read article", item.URL)),
			}
		}

		return destination, msg, discord.DefaultSendOptions()
	}, nil
}
