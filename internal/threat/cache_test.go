package threat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatchCacheExpiresEntries(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewBatchCache(2, time.Minute)
	cache.now = func() time.Time { return now }

	batch := newBatch("abuse")
	cache.Set(SourceAbuseIPDB, batch)

	got, ok := cache.Get(SourceAbuseIPDB)
	assert.True(t, ok)
	assert.Same(t, batch, got)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get(SourceAbuseIPDB)
	assert.False(t, ok)
	assert.Zero(t, cache.Size())
}

func TestBatchCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	cache := NewBatchCache(1, time.Hour)
	cache.Set(SourceAbuseIPDB, newBatch("abuse"))
	cache.Set(SourceAlienVault, newBatch("alien"))

	_, ok := cache.Get(SourceAbuseIPDB)
	assert.False(t, ok)
	_, ok = cache.Get(SourceAlienVault)
	assert.True(t, ok)
	assert.Equal(t, 1, cache.Size())
}
