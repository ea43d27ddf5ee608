// Package fingerprint remembers a cheap per-document fingerprint
// (modification time + size) so unchanged documents skip re-indexing.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// Doc is the stat information a fingerprint is derived from.
type Doc struct {
	Key     string    `json:"key"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// Entry is a stored fingerprint.
type Entry struct {
	Key   string
	MTime int64
	Hash  string
}

// Compute derives the fingerprint of doc.
func Compute(doc Doc) Entry {
	mtime := doc.ModTime.UnixNano()
	sum := sha256.Sum256([]byte(strconv.FormatInt(mtime, 10) + ":" + strconv.FormatInt(doc.Size, 10)))
	return Entry{
		Key:   doc.Key,
		MTime: mtime,
		Hash:  hex.EncodeToString(sum[:16]),
	}
}

// Cache is an in-memory fingerprint store. Entries never expire; a cold
// cache reports every document as changed.
type Cache struct {
	entries *cache.Cache
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: cache.New(cache.NoExpiration, 0)}
}

// IsChanged reports whether doc differs from its cached fingerprint.
// A missing entry counts as changed.
func (c *Cache) IsChanged(doc Doc) bool {
	v, ok := c.entries.Get(doc.Key)
	if !ok {
		return true
	}
	return v.(Entry).Hash != Compute(doc).Hash
}

// Update stores the fingerprint of doc, replacing any prior entry.
func (c *Cache) Update(doc Doc) {
	c.entries.Set(doc.Key, Compute(doc), cache.NoExpiration)
}

// Prime seeds the cache, e.g. from records restored out of a snapshot.
func (c *Cache) Prime(docs []Doc) {
	for _, d := range docs {
		c.Update(d)
	}
}

// Get returns the cached entry for key.
func (c *Cache) Get(key string) (Entry, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Remove drops the entry for key. Missing keys are ignored.
func (c *Cache) Remove(key string) {
	c.entries.Delete(key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries.Flush()
}

// Len returns the number of cached fingerprints.
func (c *Cache) Len() int {
	return c.entries.ItemCount()
}
