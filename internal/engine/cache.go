package engine

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/matsen/primdb/internal/command"
	"github.com/matsen/primdb/internal/store"
	"github.com/spaolacci/murmur3"
)

// CacheKey identifies a filtered select over one snapshot of a table.
type CacheKey struct {
	Table    string
	Snapshot [2]uint64 // murmur3 fingerprint of the collection
	Filter   command.Clause
}

// CacheStats counts cache lookups.
type CacheStats struct {
	Hits    int
	Misses  int
	Entries int
}

// ResultCache memoizes filtered select results for a session.
// A key only matches a collection with identical content, so edits made
// outside the process are never served stale. The engine also calls
// Invalidate after every mutation of a table.
type ResultCache struct {
	entries map[CacheKey][]store.Record
	stats   CacheStats
}

// NewResultCache returns an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{entries: make(map[CacheKey][]store.Record)}
}

// Key builds the cache key for filtering records of table by filter.
func (c *ResultCache) Key(table string, records []store.Record, filter command.Clause) CacheKey {
	return CacheKey{Table: table, Snapshot: Fingerprint(records), Filter: filter}
}

// Get returns a copy of the cached result for key.
func (c *ResultCache) Get(key CacheKey) ([]store.Record, bool) {
	result, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return slices.Clone(result), true
}

// Put stores a result. The slice is copied.
func (c *ResultCache) Put(key CacheKey, result []store.Record) {
	c.entries[key] = slices.Clone(result)
}

// Invalidate drops every entry for table.
func (c *ResultCache) Invalidate(table string) {
	for k := range c.entries {
		if k.Table == table {
			delete(c.entries, k)
		}
	}
}

// Stats returns hit/miss counters and the current entry count.
func (c *ResultCache) Stats() CacheStats {
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// Fingerprint hashes a record collection. Records are JSON encoded, which
// sorts map keys, so equal collections always hash equally.
func Fingerprint(records []store.Record) [2]uint64 {
	h := murmur3.New128()
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			// Unencodable values only come from corrupted input.
			data = []byte(fmt.Sprintf("%v", map[string]any(r)))
		}
		h.Write(data)
		h.Write([]byte{'\n'})
	}
	h1, h2 := h.Sum128()
	return [2]uint64{h1, h2}
}
