package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modrelay/internal/types"
)

func TestDecode_IssueOpened(t *testing.T) {
	body := []byte(`{
		"action": "opened",
		"issue": {"number": 42, "title": "Orcs spawn in the Shire", "body": "steps...", "html_url": "https://github.com/mod/repo/issues/42", "user": {"login": "frodo"}},
		"repository": {"full_name": "mod/repo", "html_url": "https://github.com/mod/repo"},
		"sender": {"login": "frodo"}
	}`)

	event, err := Decode("issues", body)
	require.NoError(t, err)
	assert.Equal(t, KindIssue, event.Kind)
	require.NotNil(t, event.Issue)
	assert.Equal(t, 42, event.Issue.Number)
	assert.Equal(t, "mod/repo", event.Repository.FullName)
}

func TestDecode_IssueClosedIsIgnored(t *testing.T) {
	event, err := Decode("issues", []byte(`{"action": "closed", "issue": {"number": 1}}`))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
}

func TestDecode_DraftPullRequestIsIgnored(t *testing.T) {
	event, err := Decode("pull_request", []byte(`{
		"action": "opened",
		"pull_request": {"number": 7, "title": "WIP", "draft": true}
	}`))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
}

func TestDecode_ReleasePublished(t *testing.T) {
	event, err := Decode("release", []byte(`{
		"action": "published",
		"release": {"tag_name": "v1.7.2", "name": "The Rohan Update", "body": "notes", "html_url": "https://github.com/mod/repo/releases/v1.7.2"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, KindRelease, event.Kind)
	assert.Equal(t, "v1.7.2", event.Release.TagName)
}

func TestDecode_ReleaseDraftedIsIgnored(t *testing.T) {
	event, err := Decode("release", []byte(`{"action": "created", "release": {"tag_name": "v1"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
}

func TestDecode_StarCreated(t *testing.T) {
	event, err := Decode("star", []byte(`{"action": "created", "sender": {"login": "samwise"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindStar, event.Kind)
}

func TestDecode_StarDeletedIsIgnored(t *testing.T) {
	event, err := Decode("star", []byte(`{"action": "deleted"}`))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
}

func TestDecode_WorkflowRunOnlyForwardsSuccess(t *testing.T) {
	success, err := Decode("workflow_run", []byte(`{
		"action": "completed",
		"workflow_run": {"id": 9, "name": "build", "head_branch": "main", "conclusion": "success"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, KindWorkflowRun, success.Kind)

	failure, err := Decode("workflow_run", []byte(`{
		"action": "completed",
		"workflow_run": {"id": 9, "name": "build", "conclusion": "failure"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, failure.Kind)
}

func TestDecode_PushWithCommits(t *testing.T) {
	event, err := Decode("push", []byte(`{
		"ref": "refs/heads/main",
		"compare": "https://github.com/mod/repo/compare/a...b",
		"commits": [{"id": "abc1234def", "message": "Fix spawn rates\n\ndetails", "url": "https://github.com/mod/repo/commit/abc"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, KindPush, event.Kind)
	assert.Equal(t, "refs/heads/main", event.Ref)
	require.Len(t, event.Commits, 1)
}

func TestDecode_BranchDeletionPushIsIgnored(t *testing.T) {
	event, err := Decode("push", []byte(`{"ref": "refs/heads/old", "deleted": true, "commits": []}`))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
}

func TestDecode_UnknownEventNameIsIgnored(t *testing.T) {
	event, err := Decode("deployment_status", []byte(`{"action": "created"}`))
	require.NoError(t, err)
	assert.Equal(t, KindIgnored, event.Kind)
}

func TestDecode_MalformedBodyIsError(t *testing.T) {
	_, err := Decode("issues", []byte(`{not json`))
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidPayload, appErr.Code)
}

func TestDecode_Gollum(t *testing.T) {
	event, err := Decode("gollum", []byte(`{
		"pages": [{"title": "Installation", "action": "edited", "html_url": "https://github.com/mod/repo/wiki/Installation"}],
		"sender": {"login": "gandalf"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, KindWiki, event.Kind)
	require.Len(t, event.WikiPages, 1)
}
