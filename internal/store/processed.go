package store

import (
	"context"
	"encoding/json"
	"fmt"

	"modrelay/internal/types"
)

// MaxProcessedIDs bounds the persisted id list per source. Oldest entries are
// evicted first, keeping storage growth flat no matter how long a source runs.
const MaxProcessedIDs = 100

// ProcessedIDStore persists the ordered list of already-emitted item ids for
// one poll source. It is read once at the start of a poll and written back
// once at the end, so a crash mid-poll re-delivers at most one run's items.
type ProcessedIDStore struct {
	kv KV
}

// NewProcessedIDStore creates a ProcessedIDStore over the given KV.
func NewProcessedIDStore(kv KV) *ProcessedIDStore {
	return &ProcessedIDStore{kv: kv}
}

// Load returns the persisted id list for key. A missing key yields an empty
// list; a corrupt value is an error so the poll aborts instead of
// re-delivering the whole feed.
func (p *ProcessedIDStore) Load(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalState,
			fmt.Sprintf("loading processed ids for %q", key), err)
	}
	if !ok {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalState,
			fmt.Sprintf("corrupt processed id list for %q", key), err)
	}
	return ids, nil
}

// Save persists ids under key in a single write, truncated to the most recent
// MaxProcessedIDs entries (oldest dropped first).
func (p *ProcessedIDStore) Save(ctx context.Context, key string, ids []string) error {
	if len(ids) > MaxProcessedIDs {
		ids = ids[len(ids)-MaxProcessedIDs:]
	}

	raw, err := json.Marshal(ids)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalState,
			fmt.Sprintf("encoding processed ids for %q", key), err)
	}

	if err := p.kv.Put(ctx, key, string(raw)); err != nil {
		return types.NewAppError(types.ErrCodeInternalState,
			fmt.Sprintf("saving processed ids for %q", key), err)
	}
	return nil
}
