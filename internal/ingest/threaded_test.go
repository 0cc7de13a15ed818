package ingest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modrelay/internal/discord"
	"modrelay/internal/store"
)

// threadCall records what a ThreadedDelivery actually sent downstream.
type threadCall struct {
	threadName string
	threadID   string
	wait       bool
}

// threadRecordingDelivery scripts the channel id returned on thread creation.
type threadRecordingDelivery struct {
	calls     []threadCall
	channelID string
	fail      bool
}

func (d *threadRecordingDelivery) Send(_ context.Context, _ string, msg *discord.Message, opts discord.SendOptions) (*discord.Result, error) {
	d.calls = append(d.calls, threadCall{
		threadName: msg.ThreadName,
		threadID:   opts.ThreadID,
		wait:       opts.Wait,
	})
	if d.fail {
		return &discord.Result{Success: false, StatusCode: http.StatusInternalServerError}, nil
	}
	res := &discord.Result{Success: true, StatusCode: http.StatusOK}
	if opts.Wait {
		res.Sent = &discord.SentMessage{ID: "1", ChannelID: d.channelID}
	}
	return res, nil
}

func sendThreaded(t *testing.T, td *ThreadedDelivery) *discord.Result {
	t.Helper()
	res, err := td.Send(context.Background(),
		"https://discord.com/api/webhooks/1/a", &discord.Message{Content: "post"}, discord.DefaultSendOptions())
	require.NoError(t, err)
	return res
}

func TestThreadedDelivery_FirstPostCreatesThread(t *testing.T) {
	kv := store.NewMemoryKV()
	next := &threadRecordingDelivery{channelID: "555"}
	td := NewThreadedDelivery(next, kv, "thread:feed", "Feed Updates", &mockLogger{})

	res := sendThreaded(t, td)
	assert.True(t, res.Success)

	require.Len(t, next.calls, 1)
	assert.Equal(t, "Feed Updates", next.calls[0].threadName)
	assert.True(t, next.calls[0].wait)
	assert.Empty(t, next.calls[0].threadID)

	stored, ok, err := kv.Get(context.Background(), "thread:feed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "555", stored)
}

func TestThreadedDelivery_FollowUpPostsReuseThread(t *testing.T) {
	kv := store.NewMemoryKV()
	next := &threadRecordingDelivery{channelID: "555"}
	td := NewThreadedDelivery(next, kv, "thread:feed", "Feed Updates", &mockLogger{})

	sendThreaded(t, td)
	sendThreaded(t, td)

	require.Len(t, next.calls, 2)
	assert.Equal(t, "555", next.calls[1].threadID)
	assert.Empty(t, next.calls[1].threadName)
}

func TestThreadedDelivery_FailedCreationRetriesOnNextPost(t *testing.T) {
	kv := store.NewMemoryKV()
	next := &threadRecordingDelivery{channelID: "555", fail: true}
	td := NewThreadedDelivery(next, kv, "thread:feed", "Feed Updates", &mockLogger{})

	res := sendThreaded(t, td)
	assert.False(t, res.Success)

	_, ok, err := kv.Get(context.Background(), "thread:feed")
	require.NoError(t, err)
	assert.False(t, ok)

	// Next post attempts thread creation again.
	next.fail = false
	sendThreaded(t, td)
	require.Len(t, next.calls, 2)
	assert.Equal(t, "Feed Updates", next.calls[1].threadName)
}

func TestThreadedDelivery_PreexistingThreadIDIsUsed(t *testing.T) {
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Put(context.Background(), "thread:feed", "777"))
	next := &threadRecordingDelivery{}
	td := NewThreadedDelivery(next, kv, "thread:feed", "Feed Updates", &mockLogger{})

	sendThreaded(t, td)

	require.Len(t, next.calls, 1)
	assert.Equal(t, "777", next.calls[0].threadID)
	assert.False(t, next.calls[0].wait)
}
