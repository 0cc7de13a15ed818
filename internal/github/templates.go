package github

import (
	"fmt"
	"strings"

	"modrelay/internal/config"
	"modrelay/internal/discord"
)

// Logical destination names for repository events.
const (
	DestGitHub    = "github"
	DestNews      = "news"
	DestChangelog = "changelog"
	DestBuilds    = "builds"
)

// Embed colors per event kind.
const (
	colorIssue       = 0xE53935
	colorPullRequest = 0x8E24AA
	colorRelease     = 0x43A047
	colorDiscussion  = 0x00ACC1
	colorFork        = 0x757575
	colorStar        = 0xFDD835
	colorBuild       = 0x3949AB
	colorWiki        = 0x6D4C41
	colorPush        = 0x546E7A
)

// Defaults substituted for absent optional payload fields.
const (
	unknownUser   = "Unknown User"
	noDescription = "No description provided"
)

// Outbound is one rendered delivery: a destination name resolved against the
// webhook table plus the message to post there. Release events render to two
// Outbounds; everything else to one.
type Outbound struct {
	Destination string
	Message     *discord.Message
	Options     discord.SendOptions
}

// Renderer turns decoded events into outbound messages. Rendering is pure:
// no network calls, no state.
type Renderer struct {
	cfg config.DiscordConfig
}

// NewRenderer creates a Renderer over the given delivery configuration.
func NewRenderer(cfg config.DiscordConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// Render maps an event to its outbound deliveries. KindIgnored renders to an
// empty slice.
func (r *Renderer) Render(event *Event) []Outbound {
	switch event.Kind {
	case KindIssue:
		return r.one(DestGitHub, r.issue(event))
	case KindPullRequest:
		return r.one(DestGitHub, r.pullRequest(event))
	case KindRelease:
		return r.release(event)
	case KindDiscussion:
		return r.one(DestGitHub, r.discussion(event))
	case KindFork:
		return r.one(DestGitHub, r.fork(event))
	case KindStar:
		return r.one(DestGitHub, r.star(event))
	case KindWorkflowRun:
		return r.one(DestBuilds, r.workflowRun(event))
	case KindWiki:
		return r.one(DestGitHub, r.wiki(event))
	case KindPush:
		return r.one(DestGitHub, r.push(event))
	default:
		return nil
	}
}

func (r *Renderer) one(destination string, msg *discord.Message) []Outbound {
	return []Outbound{{Destination: destination, Message: msg, Options: discord.DefaultSendOptions()}}
}

func (r *Renderer) message(content string, embed discord.Embed) *discord.Message {
	embed.Footer = &discord.Footer{Text: r.cfg.FooterText}
	return &discord.Message{
		Username:  r.cfg.Username,
		AvatarURL: r.cfg.AvatarURL,
		Content:   content,
		Embeds:    []discord.Embed{embed},
	}
}

func (r *Renderer) issue(event *Event) *discord.Message {
	issue := event.Issue
	return r.message(
		fmt.Sprintf("New issue in %s", event.Repository.FullName),
		discord.Embed{
			Title:       fmt.Sprintf("#%d %s", issue.Number, issue.Title),
			Description: discord.TruncateDescription(description(issue.Body)),
			URL:         issue.HTMLURL,
			Color:       colorIssue,
			Fields: []discord.Field{
				{Name: "Author", Value: displayName(issue.User), Inline: true},
			},
		},
	)
}

func (r *Renderer) pullRequest(event *Event) *discord.Message {
	pr := event.PullRequest
	return r.message(
		fmt.Sprintf("New pull request in %s", event.Repository.FullName),
		discord.Embed{
			Title:       fmt.Sprintf("#%d %s", pr.Number, pr.Title),
			Description: discord.TruncateDescription(description(pr.Body)),
			URL:         pr.HTMLURL,
			Color:       colorPullRequest,
			Fields: []discord.Field{
				{Name: "Author", Value: displayName(pr.User), Inline: true},
			},
		},
	)
}

// release fans out to the news and changelog destinations. The news post is
// an announcement with a download button; the changelog post carries the
// release notes body.
func (r *Renderer) release(event *Event) []Outbound {
	release := event.Release
	name := release.Name
	if name == "" {
		name = release.TagName
	}

	announcement := fmt.Sprintf("**%s** is out!", name)
	if release.Prerelease {
		announcement = fmt.Sprintf("Pre-release **%s** is available for testing.", name)
	}
	if mention := r.cfg.MentionFor("release"); mention != "" {
		announcement = mention + " " + announcement
	}

	newsMsg := r.message(announcement, discord.Embed{
		Title: name,
		URL:   release.HTMLURL,
		Color: colorRelease,
		Fields: []discord.Field{
			{Name: "Tag", Value: release.TagName, Inline: true},
			{Name: "Author", Value: displayName(release.Author), Inline: true},
		},
	})
	newsMsg.Components = []discord.Component{
		discord.LinkRow(discord.LinkButton("Download", release.HTMLURL)),
	}

	changelogMsg := r.message(
		fmt.Sprintf("Changelog for **%s**", name),
		discord.Embed{
			Title:       name,
			Description: discord.TruncateDescription(description(release.Body)),
			URL:         release.HTMLURL,
			Color:       colorRelease,
		},
	)

	return []Outbound{
		{Destination: DestNews, Message: newsMsg, Options: discord.DefaultSendOptions()},
		{Destination: DestChangelog, Message: changelogMsg, Options: discord.DefaultSendOptions()},
	}
}

func (r *Renderer) discussion(event *Event) *discord.Message {
	discussion := event.Discussion
	title := discussion.Title
	if discussion.Category.Name != "" {
		title = fmt.Sprintf("[%s] %s", discussion.Category.Name, title)
	}
	return r.message(
		fmt.Sprintf("New discussion in %s", event.Repository.FullName),
		discord.Embed{
			Title:       title,
			Description: discord.TruncateDescription(description(discussion.Body)),
			URL:         discussion.HTMLURL,
			Color:       colorDiscussion,
			Fields: []discord.Field{
				{Name: "Author", Value: displayName(discussion.User), Inline: true},
			},
		},
	)
}

func (r *Renderer) fork(event *Event) *discord.Message {
	return r.message(
		fmt.Sprintf("%s forked %s", displayName(event.Sender), event.Repository.FullName),
		discord.Embed{
			Title: event.Forkee.FullName,
			URL:   event.Forkee.HTMLURL,
			Color: colorFork,
		},
	)
}

func (r *Renderer) star(event *Event) *discord.Message {
	return r.message(
		fmt.Sprintf("%s starred %s", displayName(event.Sender), event.Repository.FullName),
		discord.Embed{
			Title: event.Repository.FullName,
			URL:   event.Repository.HTMLURL,
			Color: colorStar,
		},
	)
}

func (r *Renderer) workflowRun(event *Event) *discord.Message {
	run := event.WorkflowRun
	return r.message(
		fmt.Sprintf("Build succeeded on %s", run.HeadBranch),
		discord.Embed{
			Title: run.Name,
			URL:   run.HTMLURL,
			Color: colorBuild,
			Fields: []discord.Field{
				{Name: "Branch", Value: run.HeadBranch, Inline: true},
			},
		},
	)
}

func (r *Renderer) wiki(event *Event) *discord.Message {
	lines := make([]string, 0, len(event.WikiPages))
	for _, page := range event.WikiPages {
		lines = append(lines, fmt.Sprintf("%s: [%s](%s)", page.Action, page.Title, page.HTMLURL))
	}
	return r.message(
		fmt.Sprintf("Wiki updated by %s", displayName(event.Sender)),
		discord.Embed{
			Description: discord.TruncateDescription(strings.Join(lines, "\n")),
			Color:       colorWiki,
		},
	)
}

func (r *Renderer) push(event *Event) *discord.Message {
	branch := strings.TrimPrefix(event.Ref, "refs/heads/")
	lines := make([]string, 0, len(event.Commits))
	for _, commit := range event.Commits {
		short := commit.ID
		if len(short) > 7 {
			short = short[:7]
		}
		subject, _, _ := strings.Cut(commit.Message, "\n")
		lines = append(lines, fmt.Sprintf("[`%s`](%s) %s", short, commit.URL, subject))
	}
	return r.message(
		fmt.Sprintf("%d commit(s) pushed to %s on %s",
			len(event.Commits), branch, event.Repository.FullName),
		discord.Embed{
			Description: discord.TruncateDescription(strings.Join(lines, "\n")),
			URL:         event.CompareURL,
			Color:       colorPush,
		},
	)
}

func displayName(u *User) string {
	if u == nil || u.Login == "" {
		return unknownUser
	}
	return u.Login
}

func description(s string) string {
	if strings.TrimSpace(s) == "" {
		return noDescription
	}
	return s
}
