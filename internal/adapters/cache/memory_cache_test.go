package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
)

func newEntry(id string, ttl time.Duration) *core.CategoryEntry {
	now := time.Now()
	return &core.CategoryEntry{
		EmailID:      id,
		Category:     core.CategoryInterested,
		ClassifiedAt: now,
		ExpiresAt:    now.Add(ttl),
	}
}

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, newEntry("acct-INBOX-1", time.Hour)))

	entry, err := c.Get(ctx, "acct-INBOX-1")
	require.NoError(t, err)
	assert.Equal(t, core.CategoryInterested, entry.Category)
}

func TestMemoryCacheMissReturnsErrNotFound(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheExpiredEntryIsAMiss(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, newEntry("acct-INBOX-2", -time.Minute)))

	_, err := c.Get(ctx, "acct-INBOX-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, newEntry("acct-INBOX-3", time.Hour)))
	require.NoError(t, c.Delete(ctx, "acct-INBOX-3"))

	_, err := c.Get(ctx, "acct-INBOX-3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheCleanupRemovesOnlyExpired(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, newEntry("fresh", time.Hour)))
	require.NoError(t, c.Set(ctx, newEntry("stale", -time.Minute)))

	require.NoError(t, c.Cleanup(ctx))

	_, err := c.Get(ctx, "fresh")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
}
