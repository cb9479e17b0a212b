package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hidock/jensen-client/internal/kvstore"
)

func TestCacheMissBeforeAnyStore(t *testing.T) {
	c := New(kvstore.NewMemory(), nil)
	_, ok := c.Lookup("serial-1")
	assert.False(t, ok, "expected a miss on an empty cache")
	assert.False(t, c.Valid("serial-1", 0, 0))
}

func TestCacheStoreThenLookupHit(t *testing.T) {
	c := New(kvstore.NewMemory(), nil)
	recs := []Recording{{Name: "a.wav", Length: 10}}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Store("serial-1", recs, 1, 10, now)

	entry, ok := c.Lookup("serial-1")
	require.True(t, ok)
	assert.Equal(t, recs, entry.Recordings)
	assert.Equal(t, uint32(1), entry.FileCount)
	assert.Equal(t, uint64(10), entry.UsedBytes)
}

func TestCacheLookupMissesOnDeviceSerialMismatch(t *testing.T) {
	c := New(kvstore.NewMemory(), nil)
	c.Store("serial-1", nil, 0, 0, time.Now())
	_, ok := c.Lookup("serial-2")
	assert.False(t, ok, "a cache entry for a different device serial must not be returned")
}

func TestCacheValidRequiresBothCountersToMatch(t *testing.T) {
	c := New(kvstore.NewMemory(), nil)
	c.Store("serial-1", nil, 5, 1000, time.Now())

	assert.True(t, c.Valid("serial-1", 5, 1000))
	assert.False(t, c.Valid("serial-1", 6, 1000), "file_count mismatch must invalidate")
	assert.False(t, c.Valid("serial-1", 5, 999), "used_bytes mismatch must invalidate")
}

func TestCacheTouchCountersUpdatesWithoutClearingRecordings(t *testing.T) {
	c := New(kvstore.NewMemory(), nil)
	recs := []Recording{{Name: "a.wav"}}
	c.Store("serial-1", recs, 1, 10, time.Now())

	c.TouchCounters("serial-1", 2, 20)

	entry, ok := c.Lookup("serial-1")
	require.True(t, ok)
	assert.Equal(t, uint32(2), entry.FileCount)
	assert.Equal(t, uint64(20), entry.UsedBytes)
	assert.Equal(t, recs, entry.Recordings, "TouchCounters must not touch Recordings")
}

func TestCacheInvalidateClearsInMemoryButKeepsPersisted(t *testing.T) {
	store := kvstore.NewMemory()
	c := New(store, nil)
	c.Store("serial-1", []Recording{{Name: "a.wav"}}, 1, 10, time.Now())

	c.Invalidate()
	_, ok := c.Lookup("serial-1")
	assert.False(t, ok, "Invalidate must clear the in-memory mirror")

	// A fresh Cache over the same store can still Load the persisted entry.
	c2 := New(store, nil)
	c2.Load()
	entry, ok := c2.Lookup("serial-1")
	require.True(t, ok, "persisted data must survive Invalidate")
	assert.Equal(t, uint32(1), entry.FileCount)
}

func TestCacheLoadRecoversFromCorruptPersistedData(t *testing.T) {
	store := kvstore.NewMemory()
	store.Set(keyRecordings, "not json")
	store.Set(keyMetadata, `{"file_count":1}`)

	c := New(store, nil)
	c.Load()
	_, ok := c.Lookup("serial-1")
	assert.False(t, ok, "a corrupt recordings blob must be treated as a miss")

	// clearPersisted must have deleted both keys.
	_, ok1, _ := store.Get(keyRecordings)
	_, ok2, _ := store.Get(keyMetadata)
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestCacheUsesDocumentedPersistenceKeyNames(t *testing.T) {
	store := kvstore.NewMemory()
	c := New(store, nil)
	c.Store("serial-1", []Recording{{Name: "a.wav"}}, 1, 10, time.Now())

	_, ok1, _ := store.Get("recordings_cache")
	_, ok2, _ := store.Get("recordings_cache_meta")
	assert.True(t, ok1, "persisted recordings must live under the key 'recordings_cache'")
	assert.True(t, ok2, "persisted metadata must live under the key 'recordings_cache_meta'")
}
