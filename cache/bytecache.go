/*
	An ephemeral write-through byte cache.

	Some virtual filesystem backends buffer writes: a write returns
	successfully, but an immediate read through the normal read path
	still reports the file missing.  The byte cache shields reads of
	just-written pack files from that race -- a pack's bytes are held
	here from the moment they're written until the underlying indexer
	has consumed the file, and evicted immediately after.

	Entries are keyed under every normalized variant of the path a
	caller might plausibly use for lookup (with and without a leading
	slash, absolute and relative to the git root), so the cache never
	misses on a spelling difference.
*/
package cache

import (
	"path"
	"strings"
	"sync"
)

type ByteCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewByteCache() *ByteCache {
	return &ByteCache{entries: make(map[string][]byte)}
}

/*
	Stores an immutable copy of data under every path variant.
	The copy means later mutation of the caller's slice cannot
	corrupt what a concurrent reader observes.
*/
func (c *ByteCache) Put(variants []string, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range variants {
		c.entries[v] = cp
	}
}

/*
	Looks up one path.  The incoming path is normalized the same way
	entries were stored, so callers may pass any spelling.
*/
func (c *ByteCache) Get(p string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[Normalize(p)]
	return data, ok
}

func (c *ByteCache) Evict(variants []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range variants {
		delete(c.entries, v)
	}
}

// Len reports how many keys are live.  Used to assert the cache never
// accumulates entries beyond the single pack currently being processed.
func (c *ByteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

/*
	Normalize collapses duplicate separators, converts backslashes to
	forward slashes, and resolves "." and ".." segments.  A leading
	slash is preserved; everything else comes out in relative form.
*/
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean(p)
}

/*
	Variants returns the union of normalized lookup keys for every
	spelling given -- each one both with and without a leading slash.
	The store passes a pack file's path both absolute and relative to
	the git root, which covers all forms the underlying indexer is
	known to read it back under.
*/
func Variants(spellings ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(v string) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, s := range spellings {
		n := Normalize(s)
		trimmed := strings.TrimPrefix(n, "/")
		add(Normalize(trimmed))
		add("/" + trimmed)
	}
	return out
}
