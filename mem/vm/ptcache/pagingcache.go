package ptcache

import "github.com/uarchsim/vmsim/sim/naming"

// A PagingStructureCache is the combination of the three per-level
// translation caches of one simulated context.
type PagingStructureCache struct {
	naming.NamedBase

	topCache    *TranslationCache
	middleCache *TranslationCache
	lowerCache  *TranslationCache
}

// TopCache returns the cache that serves the root walk level.
func (c *PagingStructureCache) TopCache() *TranslationCache {
	return c.topCache
}

// MiddleCache returns the cache that serves the second walk level.
func (c *PagingStructureCache) MiddleCache() *TranslationCache {
	return c.middleCache
}

// LowerCache returns the cache that serves the walk level directly above
// the leaf tables.
func (c *PagingStructureCache) LowerCache() *TranslationCache {
	return c.lowerCache
}

// Levels returns the three per-level caches, top first.
func (c *PagingStructureCache) Levels() []*TranslationCache {
	return []*TranslationCache{c.topCache, c.middleCache, c.lowerCache}
}

// Flush invalidates all three levels together. A global invalidation
// event, such as a root-translation-pointer write, invalidates the whole
// translation context; flushing only some levels could leave a stale
// intermediate entry pointing at a table that has been repurposed.
func (c *PagingStructureCache) Flush() {
	c.topCache.Flush()
	c.middleCache.Flush()
	c.lowerCache.Flush()
}
