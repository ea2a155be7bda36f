package fhirpath

import (
	"container/list"
	"sync"

	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
)

// astCache is the parse-stage LRU, kept separate from
// ExpressionCache (the compiled-expression LRU) so that TypedCompile and
// plain Compile can share parse results without forcing a single compiled
// representation on both. Same capacity/eviction policy as ExpressionCache:
// get() promotes to most-recently-used, put() evicts the LRU entry on
// overflow.
type astCache struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	lru     *list.List
	limit   int
}

type astCacheEntry struct {
	key  string
	tree ast.Node
}

func newASTCache(limit int) *astCache {
	return &astCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		limit:   limit,
	}
}

func (c *astCache) get(src string) (ast.Node, bool) {
	c.mu.RLock()
	el, ok := c.entries[src]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	c.lru.MoveToFront(el)
	c.mu.Unlock()
	return el.Value.(*astCacheEntry).tree, true
}

func (c *astCache) put(src string, tree ast.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[src]; ok {
		c.lru.MoveToFront(el)
		el.Value.(*astCacheEntry).tree = tree
		return
	}

	if c.limit > 0 && len(c.entries) >= c.limit {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*astCacheEntry).key)
		}
	}

	el := c.lru.PushFront(&astCacheEntry{key: src, tree: tree})
	c.entries[src] = el
}

func (c *astCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru = list.New()
}

func (c *astCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
