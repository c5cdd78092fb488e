// Package walker provides a functional page-table walker. It resolves
// virtual addresses by traversing the multi-level page table in simulated
// memory, using a paging-structure cache to skip walk steps whose results
// are already cached.
package walker

import (
	"log"

	"github.com/uarchsim/vmsim/mem/vm"
	"github.com/uarchsim/vmsim/mem/vm/ptcache"
	"github.com/uarchsim/vmsim/sim/naming"
)

// A TableReader is the walker's view of simulated memory. It reads one
// entry of a paging structure.
type TableReader interface {
	ReadEntry(tableBase, index uint64) vm.PageTableEntry
}

// Comp walks page tables for one simulated context. Every operation is
// synchronous and runs to completion; the walker holds no in-flight
// state between calls.
type Comp struct {
	naming.NamedBase

	mem TableReader
	pwc *ptcache.PagingStructureCache

	usePWC      bool
	mode        vm.Mode
	rootPointer uint64

	tableReads uint64
}

// SetRootPointer models a write to the root-translation-pointer register.
// The write invalidates the whole translation context, so the
// paging-structure cache is flushed in full.
func (c *Comp) SetRootPointer(root uint64) {
	c.rootPointer = root
	if c.usePWC {
		c.pwc.Flush()
	}
}

// SetMode models a write to the paging-control register that switches the
// addressing mode. Like a root-pointer write, it flushes the whole
// paging-structure cache.
func (c *Comp) SetMode(mode vm.Mode) {
	c.mode = mode
	if c.usePWC {
		c.pwc.Flush()
	}
}

// Mode returns the active addressing mode.
func (c *Comp) Mode() vm.Mode {
	return c.mode
}

// TableReads returns the number of paging-structure entries read from
// simulated memory so far.
func (c *Comp) TableReads() uint64 {
	return c.tableReads
}

// Translate walks the paging hierarchy for va and returns the leaf entry
// that describes the final page frame. Non-terminal steps that the walk
// derives are inserted into the paging-structure cache; the leaf entry
// never is.
func (c *Comp) Translate(va uint64) vm.PageTableEntry {
	levels := vm.HierarchyLevels(c.mode)

	var caches []*ptcache.TranslationCache
	if c.usePWC {
		caches = c.cachesByWalkLevel()
	}

	base, start := c.deepestCachedStep(va, len(caches))

	var pte vm.PageTableEntry
	for i := start; i < len(levels); i++ {
		index := vm.Bits(va, levels[i].Hi, levels[i].Lo)
		pte = c.readEntry(base, index)

		if !pte.Present {
			log.Panicf("%s: non-present entry at walk level %d for 0x%x",
				c.Name(), i, va)
		}

		if c.usePWC && i < len(caches) {
			caches[i].Insert(va, pte, c.mode)
		}

		base = pte.BaseAddr
	}

	return pte
}

// TranslateToPhys resolves va all the way to a simulated physical address.
func (c *Comp) TranslateToPhys(va uint64) uint64 {
	leaf := c.Translate(va)
	offsetMask := (uint64(1) << vm.PageOffsetBits(c.mode)) - 1

	return leaf.BaseAddr | (va & offsetMask)
}

// deepestCachedStep probes the per-level caches from the deepest one
// upward and returns the table base to continue the walk from, together
// with the level index to resume at.
func (c *Comp) deepestCachedStep(
	va uint64,
	numCachedLevels int,
) (base uint64, start int) {
	if !c.usePWC {
		return c.rootPointer, 0
	}

	caches := c.cachesByWalkLevel()
	for i := numCachedLevels - 1; i >= 0; i-- {
		if entry := caches[i].Lookup(va, c.mode, true); entry != nil {
			return entry.Descriptor.BaseAddr, i + 1
		}
	}

	return c.rootPointer, 0
}

// cachesByWalkLevel maps walk levels to per-level caches for the active
// mode. Shallower legacy hierarchies skip the upper caches.
func (c *Comp) cachesByWalkLevel() []*ptcache.TranslationCache {
	switch c.mode {
	case vm.ModeLong:
		return []*ptcache.TranslationCache{
			c.pwc.TopCache(), c.pwc.MiddleCache(), c.pwc.LowerCache(),
		}
	case vm.ModeLegacyPAE:
		return []*ptcache.TranslationCache{
			c.pwc.MiddleCache(), c.pwc.LowerCache(),
		}
	case vm.ModeLegacy:
		return []*ptcache.TranslationCache{c.pwc.LowerCache()}
	}

	log.Panicf("%s: unknown addressing mode %d", c.Name(), c.mode)
	return nil
}

func (c *Comp) readEntry(base, index uint64) vm.PageTableEntry {
	c.tableReads++
	return c.mem.ReadEntry(base, index)
}
