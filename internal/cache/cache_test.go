package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ContentCache, *time.Time) {
	store, err := createLocalStore(map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	c := New(store, ttl, ttl, ttl)
	cur := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return cur }
	return c, &cur
}

func TestKey_StableAcrossCategories(t *testing.T) {
	k1 := Key("https://www.youtube.com/watch?v=kCc8FmEb1nY")
	k2 := Key("https://www.youtube.com/watch?v=kCc8FmEb1nY")
	require.Equal(t, k1, k2)
	require.Len(t, k1, 32)
	require.NotEqual(t, k1, Key("https://youtu.be/other-video"))
}

func TestCache_SetThenGet(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	payload := map[string]string{"summary": "a summary", "bullets": "• one"}
	require.True(t, c.Set(ctx, CategoryDerived, "url-a", payload))

	var got map[string]string
	require.True(t, c.Get(ctx, CategoryDerived, "url-a", &got))
	require.Equal(t, payload, got)
}

func TestCache_ExpiredEntryIsRemoved(t *testing.T) {
	c, cur := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.True(t, c.Set(ctx, CategoryDerived, "url-a", "value"))
	*cur = cur.Add(time.Hour + time.Second)

	var got string
	require.False(t, c.Get(ctx, CategoryDerived, "url-a", &got))

	// The stale blob is gone, not just skipped: a fresh write-then-read
	// after the clock advance still works against the same key.
	_, err := c.store.Load(ctx, string(CategoryDerived), Key("url-a"))
	require.Error(t, err)
}

func TestCache_CategoriesAreIsolated(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.True(t, c.Set(ctx, CategoryRaw, "url-a", []string{"seg1", "seg2"}))

	var got []string
	require.False(t, c.Get(ctx, CategoryDerived, "url-a", &got))
	require.False(t, c.Get(ctx, CategoryIndex, "url-a", &got))
	require.True(t, c.Get(ctx, CategoryRaw, "url-a", &got))
}

func TestCache_InvalidateRemovesAllCategories(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.True(t, c.Set(ctx, CategoryRaw, "url-a", "r"))
	require.True(t, c.Set(ctx, CategoryDerived, "url-a", "d"))
	require.True(t, c.Set(ctx, CategoryDerived, "url-b", "keep"))

	c.Invalidate(ctx, "url-a")

	var got string
	require.False(t, c.Get(ctx, CategoryRaw, "url-a", &got))
	require.False(t, c.Get(ctx, CategoryDerived, "url-a", &got))
	require.True(t, c.Get(ctx, CategoryDerived, "url-b", &got))
}

func TestCache_ClearAll(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.True(t, c.Set(ctx, CategoryRaw, "url-a", "r"))
	require.True(t, c.Set(ctx, CategoryIndex, "url-a", "i"))
	require.NoError(t, c.ClearAll(ctx))

	var got string
	for _, category := range Categories {
		require.False(t, c.Get(ctx, category, "url-a", &got))
	}

	// Namespaces are recreated and usable after a wipe.
	require.True(t, c.Set(ctx, CategoryRaw, "url-a", "again"))
	require.True(t, c.Get(ctx, CategoryRaw, "url-a", &got))
}

func TestCache_CorruptedEntryDropped(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.store.Save(ctx, string(CategoryRaw), Key("url-a"), []byte("not json")))

	var got string
	require.False(t, c.Get(ctx, CategoryRaw, "url-a", &got))
	_, err := c.store.Load(ctx, string(CategoryRaw), Key("url-a"))
	require.Error(t, err)
}
