package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessedIDStore_MissingKeyIsEmpty(t *testing.T) {
	p := NewProcessedIDStore(NewMemoryKV())

	ids, err := p.Load(context.Background(), "state:feed")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestProcessedIDStore_RoundTrip(t *testing.T) {
	p := NewProcessedIDStore(NewMemoryKV())
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, "state:feed", []string{"a", "b", "c"}))

	ids, err := p.Load(ctx, "state:feed")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestProcessedIDStore_TruncatesToBound(t *testing.T) {
	p := NewProcessedIDStore(NewMemoryKV())
	ctx := context.Background()

	ids := make([]string, MaxProcessedIDs+25)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%03d", i)
	}
	require.NoError(t, p.Save(ctx, "state:news", ids))

	loaded, err := p.Load(ctx, "state:news")
	require.NoError(t, err)
	require.Len(t, loaded, MaxProcessedIDs)

	// The most recent entries survive; the oldest are evicted.
	assert.Equal(t, "id-025", loaded[0])
	assert.Equal(t, fmt.Sprintf("id-%03d", MaxProcessedIDs+24), loaded[len(loaded)-1])
}

func TestProcessedIDStore_CorruptValueIsAnError(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Put(context.Background(), "state:feed", "{not json"))

	p := NewProcessedIDStore(kv)
	_, err := p.Load(context.Background(), "state:feed")
	assert.Error(t, err)
}

func TestMemoryKV_GetMissing(t *testing.T) {
	kv := NewMemoryKV()
	_, ok, err := kv.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
