package ingest

import (
	"context"

	"modrelay/internal/discord"
	"modrelay/internal/store"
	"modrelay/internal/types"
)

// ThreadedDelivery routes a source's posts into a single forum thread. The
// first delivery creates the thread (thread_name + wait, so the response
// carries the new thread's channel id) and persists that id; every later
// delivery targets the stored id via thread_id.
//
// A lost or stale id degrades gracefully: the next post simply creates a
// fresh thread and the stored id is replaced.
type ThreadedDelivery struct {
	next       Delivery
	kv         store.KV
	stateKey   string
	threadName string
	logger     types.Logger
}

// NewThreadedDelivery wraps next so its posts land in one persistent thread,
// tracked under stateKey.
func NewThreadedDelivery(next Delivery, kv store.KV, stateKey, threadName string, logger types.Logger) *ThreadedDelivery {
	return &ThreadedDelivery{
		next:       next,
		kv:         kv,
		stateKey:   stateKey,
		threadName: threadName,
		logger:     logger,
	}
}

func (t *ThreadedDelivery) Send(ctx context.Context, destination string, msg *discord.Message, opts discord.SendOptions) (*discord.Result, error) {
	threadID, ok, err := t.kv.Get(ctx, t.stateKey)
	if err != nil {
		// State trouble must not block the post; fall back to creating a thread.
		t.logger.Warn("loading thread id failed, creating a new thread",
			"key", t.stateKey, "error", err.Error())
		ok = false
	}

	creating := !ok || threadID == ""
	if creating {
		msg.ThreadName = t.threadName
		opts.Wait = true
	} else {
		opts.ThreadID = threadID
	}

	res, sendErr := t.next.Send(ctx, destination, msg, opts)

	if creating && sendErr == nil && res.Success && res.Sent != nil && res.Sent.ChannelID != "" {
		if err := t.kv.Put(ctx, t.stateKey, res.Sent.ChannelID); err != nil {
			t.logger.Warn("persisting thread id failed",
				"key", t.stateKey, "error", err.Error())
		}
	}

	return res, sendErr
}
