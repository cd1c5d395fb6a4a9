package api

import (
	"container/list"
	"sync"

	"github.com/solatis/formkeeper/internal/rules"
	"github.com/solatis/formkeeper/internal/types"
	"golang.org/x/sync/singleflight"
)

// compileCache keeps the most recently used compiled revisions.
// Revisions are immutable, so an entry never goes stale. Concurrent misses
// on one revision compile it once.
type compileCache struct {
	size  int
	group singleflight.Group

	mu    sync.Mutex
	order *list.List // front = most recently used
	items map[types.RevisionID]*list.Element
}

type cacheEntry struct {
	revision types.RevisionID
	form     *rules.CompiledForm
}

func newCompileCache(size int) *compileCache {
	if size < 1 {
		size = 1
	}
	return &compileCache{
		size:  size,
		order: list.New(),
		items: make(map[types.RevisionID]*list.Element, size),
	}
}

// get returns the compiled form of revision, calling load on a miss.
// hit reports whether the form came from the cache.
func (c *compileCache) get(revision types.RevisionID, load func() (*rules.CompiledForm, error)) (form *rules.CompiledForm, hit bool, err error) {
	if form, ok := c.lookup(revision); ok {
		return form, true, nil
	}

	v, err, _ := c.group.Do(string(revision), func() (any, error) {
		if form, ok := c.lookup(revision); ok {
			return form, nil
		}
		form, err := load()
		if err != nil {
			return nil, err
		}
		c.add(revision, form)
		return form, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*rules.CompiledForm), false, nil
}

// add stores a compiled form, evicting the least recently used entry when
// full.
func (c *compileCache) add(revision types.RevisionID, form *rules.CompiledForm) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[revision]; ok {
		c.order.MoveToFront(el)
		return
	}
	c.items[revision] = c.order.PushFront(&cacheEntry{revision: revision, form: form})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).revision)
	}
}

func (c *compileCache) lookup(revision types.RevisionID) (*rules.CompiledForm, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[revision]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).form, true
}

func (c *compileCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
