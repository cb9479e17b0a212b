// Package cache implements the storage-delta recordings cache (spec §4.8):
// an in-memory mirror backed by a persistent kvstore.Store, valid only
// while the connected device's serial number, file count, and used-byte
// total all match what was cached.
package cache

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hidock/jensen-client/internal/kvstore"
)

const (
	keyRecordings = "recordings_cache"
	keyMetadata   = "recordings_cache_meta"
)

// Recording mirrors jensen.Recording's fields for persistence purposes.
// Defined independently (rather than imported) so this package stays a
// leaf: the jensen package imports internal/cache to build Client, so the
// reverse import would cycle.
type Recording struct {
	Name        string        `json:"name"`
	Length      uint32        `json:"length"`
	Version     uint8         `json:"version"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"created_at"`
	DateGuessed bool          `json:"date_guessed"`
}

// metadata is the persisted, non-recordings half of an Entry (spec §4.8's
// "recordings_cache_meta" key).
type metadata struct {
	FileCount    uint32    `json:"file_count"`
	UsedBytes    uint64    `json:"used_bytes"`
	DeviceSerial string    `json:"device_serial"`
	Timestamp    time.Time `json:"timestamp"`
}

// Entry is one cache snapshot (spec §3's CacheEntry).
type Entry struct {
	Recordings   []Recording
	FileCount    uint32
	UsedBytes    uint64
	DeviceSerial string
	Timestamp    time.Time
}

// Cache is the in-memory mirror plus persistence described in spec §4.8.
type Cache struct {
	store  kvstore.Store
	logger *log.Logger

	have  bool
	entry Entry
}

// New constructs a Cache persisting through store.
func New(store kvstore.Store, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{store: store, logger: logger}
}

// Load populates the in-memory mirror from the persisted store, if present
// and well-formed (spec §4.8 step 1: "On parse failure, clear both keys and
// proceed as miss"). It is a no-op if the in-memory mirror is already
// populated.
func (c *Cache) Load() {
	if c.have {
		return
	}
	recJSON, ok1, err1 := c.store.Get(keyRecordings)
	metaJSON, ok2, err2 := c.store.Get(keyMetadata)
	if err1 != nil || err2 != nil || !ok1 || !ok2 {
		return
	}

	var recs []Recording
	var meta metadata
	if err := json.Unmarshal([]byte(recJSON), &recs); err != nil {
		c.clearPersisted()
		return
	}
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		c.clearPersisted()
		return
	}

	c.entry = Entry{
		Recordings:   recs,
		FileCount:    meta.FileCount,
		UsedBytes:    meta.UsedBytes,
		DeviceSerial: meta.DeviceSerial,
		Timestamp:    meta.Timestamp,
	}
	c.have = true
}

func (c *Cache) clearPersisted() {
	if err := c.store.Delete(keyRecordings); err != nil {
		c.logger.Printf("cache: clearing recordings_cache: %v", err)
	}
	if err := c.store.Delete(keyMetadata); err != nil {
		c.logger.Printf("cache: clearing recordings_cache_meta: %v", err)
	}
}

// Lookup reports whether a cached Entry exists for deviceSerial and, if so,
// returns it. It does not itself check the storage-delta invariant; callers
// use Valid for that (spec §4.8 step 2 separates "cache present for this
// device" from "cache matches current counters").
func (c *Cache) Lookup(deviceSerial string) (Entry, bool) {
	if !c.have || c.entry.DeviceSerial != deviceSerial {
		return Entry{}, false
	}
	return c.entry, true
}

// Valid reports whether the cached entry for deviceSerial is still valid
// given the device's current file count and used-byte total (spec §3's
// CacheEntry invariant: both counters must match).
func (c *Cache) Valid(deviceSerial string, currentFileCount uint32, currentUsedBytes uint64) bool {
	entry, ok := c.Lookup(deviceSerial)
	if !ok {
		return false
	}
	return entry.FileCount == currentFileCount && entry.UsedBytes == currentUsedBytes
}

// TouchCounters updates only the cached file_count/used_bytes for
// deviceSerial, leaving Recordings untouched, so the next validity check
// compares against fresh counters even though a full refetch has not
// happened yet (spec §4.8 step 2c).
func (c *Cache) TouchCounters(deviceSerial string, fileCount uint32, usedBytes uint64) {
	if !c.have || c.entry.DeviceSerial != deviceSerial {
		return
	}
	c.entry.FileCount = fileCount
	c.entry.UsedBytes = usedBytes
	c.persist()
}

// Store populates the cache with a freshly fetched list and persists it
// (spec §4.8 step 3).
func (c *Cache) Store(deviceSerial string, recordings []Recording, fileCount uint32, usedBytes uint64, now time.Time) {
	c.entry = Entry{
		Recordings:   recordings,
		FileCount:    fileCount,
		UsedBytes:    usedBytes,
		DeviceSerial: deviceSerial,
		Timestamp:    now,
	}
	c.have = true
	c.persist()
}

// Invalidate marks the in-memory mirror as unpopulated without touching the
// persisted blobs (spec §3's Lifecycle: "invalidated (but not deleted) on
// disconnect (persistence retained for fast reconnect)").
func (c *Cache) Invalidate() {
	c.have = false
}

func (c *Cache) persist() {
	recJSON, err := json.Marshal(c.entry.Recordings)
	if err != nil {
		c.logger.Printf("cache: marshal recordings: %v", err)
		return
	}
	metaJSON, err := json.Marshal(metadata{
		FileCount:    c.entry.FileCount,
		UsedBytes:    c.entry.UsedBytes,
		DeviceSerial: c.entry.DeviceSerial,
		Timestamp:    c.entry.Timestamp,
	})
	if err != nil {
		c.logger.Printf("cache: marshal metadata: %v", err)
		return
	}
	if err := c.store.Set(keyRecordings, string(recJSON)); err != nil {
		c.logger.Printf("cache: persisting recordings_cache: %v", err)
	}
	if err := c.store.Set(keyMetadata, string(metaJSON)); err != nil {
		c.logger.Printf("cache: persisting recordings_cache_meta: %v", err)
	}
}
