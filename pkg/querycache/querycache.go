// Package querycache implements the LRU query result cache described in
// SPEC_FULL.md §4.5, keyed on a normalized subset of a query and
// invalidated wholesale on any mutation. Built on
// github.com/hashicorp/golang-lru/v2, the same generic LRU the
// estuary-flow sibling in the retrieval pack uses for its frontend SNI
// cache (see DESIGN.md).
package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize matches SPEC_FULL.md's cache.size default.
const DefaultSize = 256

// Key is the normalized subset of a MemoryQuery that determines cache
// identity. Slice fields are sorted by the caller before building a Key so
// that filter order never causes a spurious cache miss.
type Key struct {
	Q        string   `json:"q"`
	Scope    string   `json:"scope"`
	Type     []string `json:"type,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Files    []string `json:"files,omitempty"`
	Symbols  []string `json:"symbols,omitempty"`
	Language []string `json:"language,omitempty"`
	K        int      `json:"k"`
}

// Hash returns a stable digest of k suitable as an LRU key.
func (k Key) Hash() string {
	sort.Strings(k.Type)
	sort.Strings(k.Tags)
	sort.Strings(k.Files)
	sort.Strings(k.Symbols)
	sort.Strings(k.Language)
	data, _ := json.Marshal(k)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Cache wraps a generic LRU of hashed keys to arbitrary cached results.
// Result is left as `any` (the manager stores *QueryResult) so this
// package has no dependency on the manager's types.
type Cache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, any]
}

// New builds a Cache with the given capacity (DefaultSize if size <= 0).
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	inner, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// Get returns the cached value for key, if present.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Get(key.Hash())
}

// Put stores value under key.
func (c *Cache) Put(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(key.Hash(), value)
}

// Invalidate purges the entire cache. Any mutation in any scope calls this
// rather than tracking per-key dependencies, per SPEC_FULL.md §4.5.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}
