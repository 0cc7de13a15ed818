package discord

// Message is the JSON body posted to a Discord webhook endpoint.
type Message struct {
	Username   string      `json:"username,omitempty"`
	AvatarURL  string      `json:"avatar_url,omitempty"`
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`

	// ThreadName requests creation of a new thread (forum channels).
	// The created thread's id comes back as channel_id in the response
	// when the wait flag is set on the request.
	ThreadName string `json:"thread_name,omitempty"`

	// AppliedTags are forum tag snowflakes applied to a newly created thread.
	AppliedTags []string `json:"applied_tags,omitempty"`
}

// Embed is a rich content block within a message.
type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	URL         string  `json:"url,omitempty"`
	Color       int     `json:"color,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"` // ISO-8601
	Fields      []Field `json:"fields,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
}

// Field is a name/value pair within an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Footer is the footer line of an embed.
type Footer struct {
	Text string `json:"text"`
}

// Component is a top-level action row holding interactive elements.
type Component struct {
	Type       int      `json:"type"` // 1 = action row
	Components []Button `json:"components,omitempty"`
}

// Button is a link-style button descriptor.
type Button struct {
	Type  int    `json:"type"`  // 2 = button
	Style int    `json:"style"` // 5 = link
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ButtonStyleLink is the Discord component style for URL buttons.
const ButtonStyleLink = 5

// LinkRow builds an action row of link buttons, one per label/url pair.
func LinkRow(buttons ...Button) Component {
	return Component{Type: 1, Components: buttons}
}

// LinkButton builds a single link-style button.
func LinkButton(label, url string) Button {
	return Button{Type: 2, Style: ButtonStyleLink, Label: label, URL: url}
}

// EmbedDescriptionLimit is the truncation bound applied to embed
// descriptions built from source text (Discord's hard limit is 4096;
// relayed summaries are kept far shorter).
const EmbedDescriptionLimit = 500

// TruncateDescription trims s to the embed description bound, appending an
// ellipsis when text was dropped.
func TruncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= EmbedDescriptionLimit {
		return s
	}
	return string(runes[:EmbedDescriptionLimit-1]) + "…"
}

// Attachment is a binary blob uploaded alongside the message.
type Attachment struct {
	Filename string
	Data     []byte
}

// SentMessage is the structured data Discord returns on a 2xx response when
// the wait flag is set. ChannelID carries the created thread's id for forum
// posts, enabling follow-up posts into the same thread.
type SentMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// Result is the outcome of one Send invocation, covering the full retry
// sequence. It is returned to the caller and never persisted.
type Result struct {
	Success     bool
	StatusCode  int
	RateLimited bool // retries exhausted while still rate limited
	Sent        *SentMessage
	ErrorBody   string
}
