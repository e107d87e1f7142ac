package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/core"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	t.Cleanup(c.Stop)
	return c
}

func testEntry(key string, ttl time.Duration) *core.CacheEntry {
	return &core.CacheEntry{
		Key:        key,
		Verdict:    core.VerdictPhishing,
		Confidence: 92,
		Source:     core.SourceHeuristic,
		Indicators: []string{"sender domain spoofing"},
		Links: []core.SuspiciousLink{
			{URL: "http://paypa1.com/login", Reason: "impersonates paypal.com"},
		},
		LastSeen: time.Now(),
		ExpiresAt:  time.Now().Add(ttl),
	}
}

func TestMemoryCacheSetGet(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	entry := testEntry("url:https://g00gle.com", time.Hour)
	require.NoError(t, c.Set(ctx, entry))

	got, err := c.Get(ctx, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, core.VerdictPhishing, got.Verdict)
	assert.Equal(t, 92, got.Confidence)
	assert.Equal(t, entry.Indicators, got.Indicators)
	assert.Equal(t, entry.Links, got.Links)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := newTestMemoryCache(t)

	_, err := c.Get(context.Background(), "url:https://example.org")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryCacheExpiredEntry(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	entry := testEntry("email:old@example.org", -time.Minute)
	require.NoError(t, c.Set(ctx, entry))

	_, err := c.Get(ctx, entry.Key)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	entry := testEntry("url:https://example.org", time.Hour)
	require.NoError(t, c.Set(ctx, entry))
	require.NoError(t, c.Delete(ctx, entry.Key))

	_, err := c.Get(ctx, entry.Key)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryCacheCleanup(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testEntry("live", time.Hour)))
	require.NoError(t, c.Set(ctx, testEntry("expired", -time.Minute)))

	require.NoError(t, c.Cleanup(ctx))

	_, err := c.Get(ctx, "live")
	assert.NoError(t, err)

	c.mu.RLock()
	_, stillThere := c.entries["expired"]
	c.mu.RUnlock()
	assert.False(t, stillThere, "cleanup removes expired entries from the map")
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	first := testEntry("url:https://example.org", time.Hour)
	require.NoError(t, c.Set(ctx, first))

	second := testEntry("url:https://example.org", time.Hour)
	second.Verdict = core.VerdictSafe
	second.Confidence = 85
	require.NoError(t, c.Set(ctx, second))

	got, err := c.Get(ctx, first.Key)
	require.NoError(t, err)
	assert.Equal(t, core.VerdictSafe, got.Verdict)
	assert.Equal(t, 85, got.Confidence)
}
