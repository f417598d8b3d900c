// Package content manages downloaded structure payloads: the in-memory
// cache with single-flight download bookkeeping, the sequential bulk
// downloader, and the hash-validated disk store.
package content

import (
	"sort"
	"sync"

	"spawnforge.ai/internal/catalog"
)

// Entry is one cached payload. The payload is only ever stored after its
// content hash has been verified against the catalog's expectation.
type Entry struct {
	ID      string
	Raw     []byte
	Payload *catalog.Payload
	Hash    string
}

// Cache is shared between the tick goroutine and background fetch
// goroutines; all access goes through the mutex.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]Entry
	downloading map[string]bool
}

func NewCache() *Cache {
	return &Cache{
		entries:     map[string]Entry{},
		downloading: map[string]bool{},
	}
}

func (c *Cache) Get(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// GetVerified returns the payload only if the cached hash matches the
// catalog's current expectation for the identifier.
func (c *Cache) GetVerified(id, expectedHash string) (*catalog.Payload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || e.Hash != expectedHash {
		return nil, false
	}
	return e.Payload, true
}

func (c *Cache) Put(id string, raw []byte, payload *catalog.Payload, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = Entry{ID: id, Raw: raw, Payload: payload, Hash: hash}
}

func (c *Cache) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IDs returns the cached identifiers in deterministic order.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot copies out every entry, in IDs() order.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.entries[id])
	}
	return out
}

// MarkDownloading records an in-flight fetch for the identifier. It returns
// false if a fetch is already in flight; the caller must not start another
// (single-flight).
func (c *Cache) MarkDownloading(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.downloading[id] {
		return false
	}
	c.downloading[id] = true
	return true
}

func (c *Cache) IsDownloading(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.downloading[id]
}

func (c *Cache) ClearDownloading(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.downloading, id)
}

// Invalidate drops every entry whose identifier is absent from expected or
// whose hash no longer matches. Called when a refreshed catalog replaces
// the active one. Returns the removed identifiers.
func (c *Cache) Invalidate(expected map[string]string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []string
	for id, e := range c.entries {
		if want, ok := expected[id]; !ok || want != e.Hash {
			delete(c.entries, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}
