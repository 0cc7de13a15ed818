// Package github decodes inbound repository webhook events and renders them
// into outbound Discord messages.
package github

import (
	"encoding/json"
	"fmt"

	"modrelay/internal/types"
)

// EventKind discriminates the decoded event union.
type EventKind string

const (
	KindIssue       EventKind = "issue"
	KindPullRequest EventKind = "pull_request"
	KindRelease     EventKind = "release"
	KindDiscussion  EventKind = "discussion"
	KindFork        EventKind = "fork"
	KindStar        EventKind = "star"
	KindWorkflowRun EventKind = "workflow_run"
	KindWiki        EventKind = "wiki"
	KindPush        EventKind = "push"

	// KindIgnored marks events the relay recognizes but deliberately does
	// not forward (unknown event names, uninteresting actions). Ignored is
	// a success outcome, never an error, so GitHub's redelivery-on-failure
	// is not triggered for events we choose to skip.
	KindIgnored EventKind = "ignored"
)

// User is the actor attached to most payloads.
type User struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// Repository identifies the repository an event originated from.
type Repository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

// Issue is the issue object within an issues event.
type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	User    *User  `json:"user"`
}

// PullRequest is the pull request object within a pull_request event.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	User    *User  `json:"user"`
	Draft   bool   `json:"draft"`
}

// Release is the release object within a release event.
type Release struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	HTMLURL    string `json:"html_url"`
	Prerelease bool   `json:"prerelease"`
	Author     *User  `json:"author"`
}

// Discussion is the discussion object within a discussion event.
type Discussion struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	HTMLURL  string `json:"html_url"`
	User     *User  `json:"user"`
	Category struct {
		Name string `json:"name"`
	} `json:"category"`
}

// WorkflowRun is the run object within a workflow_run event.
type WorkflowRun struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	HeadBranch   string `json:"head_branch"`
	Conclusion   string `json:"conclusion"`
	HTMLURL      string `json:"html_url"`
	ArtifactsURL string `json:"artifacts_url"`
}

// WikiPage is one entry of a gollum event's pages list.
type WikiPage struct {
	Title   string `json:"title"`
	Action  string `json:"action"`
	HTMLURL string `json:"html_url"`
}

// Commit is one entry of a push event's commits list.
type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	URL     string `json:"url"`
	Author  struct {
		Name string `json:"name"`
	} `json:"author"`
}

// Event is the decoded inbound webhook, tagged by Kind. Exactly one payload
// pointer matching the kind is non-nil; KindIgnored carries none.
type Event struct {
	Kind       EventKind
	Action     string
	Repository Repository
	Sender     *User

	Issue       *Issue
	PullRequest *PullRequest
	Release     *Release
	Discussion  *Discussion
	Forkee      *Repository
	WorkflowRun *WorkflowRun
	WikiPages   []WikiPage

	// Push fields.
	Ref        string
	Commits    []Commit
	CompareURL string
}

// envelope covers every payload shape we decode. Fields the given event name
// does not carry simply stay nil.
type envelope struct {
	Action      string       `json:"action"`
	Repository  Repository   `json:"repository"`
	Sender      *User        `json:"sender"`
	Issue       *Issue       `json:"issue"`
	PullRequest *PullRequest `json:"pull_request"`
	Release     *Release     `json:"release"`
	Discussion  *Discussion  `json:"discussion"`
	Forkee      *Repository  `json:"forkee"`
	WorkflowRun *WorkflowRun `json:"workflow_run"`
	Pages       []WikiPage   `json:"pages"`
	Ref         string       `json:"ref"`
	Commits     []Commit     `json:"commits"`
	Compare     string       `json:"compare"`
	Deleted     bool         `json:"deleted"`
}

// Decode classifies an inbound webhook by its X-GitHub-Event name and action.
// Unrecognized names and uninteresting actions yield a KindIgnored event.
// Only a malformed JSON body is an error.
func Decode(eventName string, body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPayload,
			fmt.Sprintf("malformed %s event body", eventName), err)
	}

	event := &Event{
		Kind:       KindIgnored,
		Action:     env.Action,
		Repository: env.Repository,
		Sender:     env.Sender,
	}

	switch eventName {
	case "issues":
		if env.Action == "opened" && env.Issue != nil {
			event.Kind = KindIssue
			event.Issue = env.Issue
		}
	case "pull_request":
		if env.Action == "opened" && env.PullRequest != nil && !env.PullRequest.Draft {
			event.Kind = KindPullRequest
			event.PullRequest = env.PullRequest
		}
	case "release":
		if env.Action == "published" && env.Release != nil {
			event.Kind = KindRelease
			event.Release = env.Release
		}
	case "discussion":
		if env.Action == "created" && env.Discussion != nil {
			event.Kind = KindDiscussion
			event.Discussion = env.Discussion
		}
	case "fork":
		if env.Forkee != nil {
			event.Kind = KindFork
			event.Forkee = env.Forkee
		}
	case "star":
		if env.Action == "created" {
			event.Kind = KindStar
		}
	case "workflow_run":
		if env.Action == "completed" && env.WorkflowRun != nil && env.WorkflowRun.Conclusion == "success" {
			event.Kind = KindWorkflowRun
			event.WorkflowRun = env.WorkflowRun
		}
	case "gollum":
		if len(env.Pages) > 0 {
			event.Kind = KindWiki
			event.WikiPages = env.Pages
		}
	case "push":
		// Branch deletions arrive as pushes with an empty commit list.
		if !env.Deleted && len(env.Commits) > 0 {
			event.Kind = KindPush
			event.Ref = env.Ref
			event.Commits = env.Commits
			event.CompareURL = env.Compare
		}
	}

	return event, nil
}
