package enumerate

import "container/list"

// metaCache is a count-bounded LRU for Entry metadata, keyed by path.
// Callers hold the Model lock; the cache itself is not safe for
// concurrent use.
type metaCache struct {
	maxSize int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	hits    uint64
	misses  uint64
}

type metaItem struct {
	path  string
	entry Entry
}

func newMetaCache(maxSize int) *metaCache {
	return &metaCache{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// get returns the cached entry and counts the access.
func (c *metaCache) get(path string) (Entry, bool) {
	elem, ok := c.entries[path]
	if !ok {
		c.misses++
		return Entry{}, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return elem.Value.(*metaItem).entry, true
}

// contains reports presence without touching recency or counters. Used
// while filling a batch so the fill doesn't distort stats.
func (c *metaCache) contains(path string) bool {
	_, ok := c.entries[path]
	return ok
}

// peek returns the cached entry, bumping recency but not the counters.
// Used right after a batch fill so the lookup that triggered the fill
// is counted once.
func (c *metaCache) peek(path string) (Entry, bool) {
	elem, ok := c.entries[path]
	if !ok {
		return Entry{}, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*metaItem).entry, true
}

// put stores an entry, evicting the least recently used once over the
// size bound.
func (c *metaCache) put(path string, e Entry) {
	if elem, ok := c.entries[path]; ok {
		elem.Value.(*metaItem).entry = e
		c.order.MoveToFront(elem)
		return
	}

	c.entries[path] = c.order.PushFront(&metaItem{path: path, entry: e})

	if c.order.Len() > c.maxSize {
		back := c.order.Back()
		c.order.Remove(back)
		delete(c.entries, back.Value.(*metaItem).path)
	}
}

func (c *metaCache) len() int {
	return c.order.Len()
}
