// Package ptcache models the paging-structure caches of a CPU: per-level
// caches for the non-terminal steps of a page-table walk, so repeated
// walks that share an address prefix skip re-reading the shared levels
// from simulated memory.
//
// The caches are write-through and never hold final (leaf) translations.
// They are not safe for concurrent use; a simulated context drives them
// synchronously, one operation at a time.
package ptcache

import (
	"log"

	"github.com/uarchsim/vmsim/mem/vm"
	"github.com/uarchsim/vmsim/mem/vm/ptcache/internal/trie"
	"github.com/uarchsim/vmsim/sim/hooking"
	"github.com/uarchsim/vmsim/sim/naming"
)

// An Entry is one slot of a translation cache. While occupied it binds a
// masked address prefix to the descriptor of the next walk step.
type Entry struct {
	Key        uint64
	Descriptor vm.PageTableEntry

	lruSeq uint64
	handle *trie.Handle
	slot   int
}

func (e *Entry) occupied() bool {
	return e.handle != nil
}

// A TranslationCache caches the result of one non-terminal page-walk
// level. It owns a fixed pool of entries allocated at construction;
// entries are recycled between free and occupied, never created or
// destroyed afterwards.
type TranslationCache struct {
	naming.NamedBase
	hooking.HookableBase

	level        Level
	maskBitsLow  uint
	maskBitsHigh uint
	addrMask     uint64

	lruSeq   uint64
	pool     []Entry
	freeList []int
	index    *trie.Trie
	counters *CounterTracer
}

func newTranslationCache(
	name string,
	level Level,
	capacity int,
	maskBitsHigh, maskBitsLow uint,
) *TranslationCache {
	if capacity < 1 {
		log.Panicf("%s: capacity must be at least 1, got %d", name, capacity)
	}

	c := &TranslationCache{
		NamedBase:    naming.MakeNamedBase(name),
		level:        level,
		maskBitsHigh: maskBitsHigh,
		maskBitsLow:  maskBitsLow,
		addrMask: (^uint64(0) >> maskBitsHigh) &
			(^uint64(0) << maskBitsLow),
		pool:     make([]Entry, capacity),
		freeList: make([]int, 0, capacity),
		index:    trie.New(),
		counters: NewCounterTracer(),
	}

	for i := range c.pool {
		c.pool[i].slot = i
		c.freeList = append(c.freeList, i)
	}

	c.AcceptHook(c.counters)

	return c
}

// Capacity returns the fixed number of entry slots.
func (c *TranslationCache) Capacity() int {
	return len(c.pool)
}

// OccupiedCount returns the number of currently occupied entries.
func (c *TranslationCache) OccupiedCount() int {
	return len(c.pool) - len(c.freeList)
}

// Level returns the walk level this cache serves.
func (c *TranslationCache) Level() Level {
	return c.level
}

// Stats returns the event counters of this cache.
func (c *TranslationCache) Stats() Stats {
	return c.counters.Stats()
}

func (c *TranslationCache) nextSeq() uint64 {
	c.lruSeq++
	return c.lruSeq
}

func (c *TranslationCache) key(addr uint64, mode vm.Mode) uint64 {
	return c.addrMask & c.level.deriveKey(addr, mode)
}

// Insert binds the prefix of vpn for this level to the descriptor of the
// next walk step and returns the entry. If the prefix is already cached,
// the existing entry is returned unchanged; the cached descriptor must
// match the supplied one, as a prefix always resolves to one stable
// descriptor until the next flush. When no slot is free, the
// least-recently-used entry is evicted first.
func (c *TranslationCache) Insert(
	vpn uint64,
	descriptor vm.PageTableEntry,
	mode vm.Mode,
) *Entry {
	c.mustBeInitialized()

	key := c.key(vpn, mode)

	if slot, found := c.index.Lookup(key); found {
		// A cooperating walk derived the same step already.
		entry := &c.pool[slot]
		if entry.Key != key {
			log.Panicf("%s: index returned entry with key 0x%x for key 0x%x",
				c.Name(), entry.Key, key)
		}
		if entry.Descriptor != descriptor {
			log.Panicf(
				"%s: descriptor mismatch on duplicate insert for key 0x%x; "+
					"an invalidation was missed elsewhere",
				c.Name(), key)
		}

		return entry
	}

	if len(c.freeList) == 0 {
		c.evictLRU()
	}

	slot := c.freeList[0]
	c.freeList = c.freeList[1:]

	entry := &c.pool[slot]
	entry.Key = key
	entry.Descriptor = descriptor
	entry.lruSeq = c.nextSeq()
	entry.handle = c.index.Insert(key, trie.MaxBits-c.maskBitsLow, slot)

	c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosInsert, Item: entry})

	return entry
}

// Lookup probes the cache for the prefix of addr. It returns nil on a
// miss. With updateLRU false the probe does not refresh the entry's
// recency, so diagnostic peeks do not disturb the eviction order.
func (c *TranslationCache) Lookup(
	addr uint64,
	mode vm.Mode,
	updateLRU bool,
) *Entry {
	c.mustBeInitialized()

	key := c.key(addr, mode)

	slot, found := c.index.Lookup(key)
	if !found {
		c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosMiss, Item: key})
		return nil
	}

	entry := &c.pool[slot]
	if updateLRU {
		entry.lruSeq = c.nextSeq()
	}

	c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosHit, Item: entry})

	return entry
}

// evictLRU recycles the occupied entry with the smallest recency stamp,
// breaking ties by the lowest slot number. Only called when the free list
// is empty, so at least one occupied entry exists.
func (c *TranslationCache) evictLRU() {
	victim := -1
	for i := range c.pool {
		if !c.pool[i].occupied() {
			continue
		}
		if victim < 0 || c.pool[i].lruSeq < c.pool[victim].lruSeq {
			victim = i
		}
	}

	if victim < 0 {
		log.Panicf("%s: free list empty but no occupied entry to evict",
			c.Name())
	}

	entry := &c.pool[victim]
	c.index.Remove(entry.handle)
	entry.handle = nil
	c.freeList = append(c.freeList, victim)

	c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosEvict, Item: entry})
}

// Flush returns every occupied entry to the free list. Flushing an
// already-empty cache is a no-op. This is the only invalidation
// primitive; there is no per-key variant.
func (c *TranslationCache) Flush() {
	c.mustBeInitialized()

	for i := range c.pool {
		if !c.pool[i].occupied() {
			continue
		}

		c.index.Remove(c.pool[i].handle)
		c.pool[i].handle = nil
		c.freeList = append(c.freeList, i)
	}

	c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosFlush})
}

func (c *TranslationCache) mustBeInitialized() {
	if c.index == nil {
		panic("translation cache is not initialized; use ptcache.MakeBuilder")
	}
}
