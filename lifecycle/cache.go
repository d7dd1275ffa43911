package lifecycle

import (
	"sync"

	"github.com/wippyai/scanx-wasm/engine"
)

// Entry is what the cache holds per factory. A nil Future means the
// overrides are staged and nothing has been instantiated for them.
type Entry struct {
	Overrides engine.Overrides
	Future    *Future
}

// Cache maps factory identity to its current Entry. Entries live until
// purged; that is the memoization, not a leak.
type Cache struct {
	entries  map[*engine.Factory]Entry
	defaults func() engine.Overrides
	mu       sync.Mutex
}

// NewCache creates a cache whose lookups fall back to defaults. defaults
// runs at most once, on the first fallback, so every fallback sees the same
// map. A nil defaults means empty overrides.
func NewCache(defaults func() engine.Overrides) *Cache {
	if defaults == nil {
		defaults = func() engine.Overrides { return engine.Overrides{} }
	}
	return &Cache{
		entries:  make(map[*engine.Factory]Entry),
		defaults: sync.OnceValue(defaults),
	}
}

// Lookup returns the entry for f, or the environment default overrides
// with no Future when f has none
func (c *Cache) Lookup(f *engine.Factory) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(f)
}

// Store replaces the entry for f wholesale
func (c *Cache) Store(f *engine.Factory, ov engine.Overrides, fut *Future) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[f] = Entry{Overrides: ov, Future: fut}
}

// Purge removes the entry for f. The next lookup falls back to defaults.
func (c *Cache) Purge(f *engine.Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, f)
}

// Len returns the number of factories with an entry
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Defaults returns the environment default overrides
func (c *Cache) Defaults() engine.Overrides {
	return c.defaults()
}

func (c *Cache) lookupLocked(f *engine.Factory) Entry {
	if e, ok := c.entries[f]; ok {
		return e
	}
	return Entry{Overrides: c.defaults()}
}

func (c *Cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
