package walker

import (
	"github.com/uarchsim/vmsim/mem/vm"
	"github.com/uarchsim/vmsim/mem/vm/ptcache"
	"github.com/uarchsim/vmsim/sim/naming"
)

// A Builder can build page-table walkers.
type Builder struct {
	mem            TableReader
	pwc            *ptcache.PagingStructureCache
	mode           vm.Mode
	rootPointer    uint64
	topCapacity    int
	middleCapacity int
	lowerCapacity  int
	disablePWC     bool
}

// MakeBuilder returns a Builder with long mode and the default
// paging-structure cache capacities.
func MakeBuilder() Builder {
	return Builder{
		mode: vm.ModeLong,
	}
}

// WithTableReader sets the simulated memory the walker reads paging
// structures from.
func (b Builder) WithTableReader(mem TableReader) Builder {
	b.mem = mem
	return b
}

// WithPagingStructureCache sets a pre-built cache for the walker to use,
// overriding the capacity options.
func (b Builder) WithPagingStructureCache(
	pwc *ptcache.PagingStructureCache,
) Builder {
	b.pwc = pwc
	return b
}

// WithCacheCapacities sets the per-level capacities of the
// paging-structure cache the builder creates.
func (b Builder) WithCacheCapacities(top, middle, lower int) Builder {
	b.topCapacity = top
	b.middleCapacity = middle
	b.lowerCapacity = lower
	return b
}

// WithoutPagingStructureCache disables the cache entirely; every walk
// then reads all levels from simulated memory.
func (b Builder) WithoutPagingStructureCache() Builder {
	b.disablePWC = true
	return b
}

// WithMode sets the initial addressing mode.
func (b Builder) WithMode(mode vm.Mode) Builder {
	b.mode = mode
	return b
}

// WithRootPointer sets the initial root-translation pointer.
func (b Builder) WithRootPointer(root uint64) Builder {
	b.rootPointer = root
	return b
}

// Build creates a walker.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		NamedBase:   naming.MakeNamedBase(name),
		mem:         b.mem,
		mode:        b.mode,
		rootPointer: b.rootPointer,
		usePWC:      !b.disablePWC,
	}

	if c.mem == nil {
		panic(name + ": walker needs a TableReader")
	}

	if c.usePWC {
		c.pwc = b.pwc
		if c.pwc == nil {
			pwcBuilder := ptcache.MakeBuilder()
			if b.topCapacity > 0 {
				pwcBuilder = pwcBuilder.
					WithTopCapacity(b.topCapacity).
					WithMiddleCapacity(b.middleCapacity).
					WithLowerCapacity(b.lowerCapacity)
			}
			c.pwc = pwcBuilder.Build(name + ".PWC")
		}
	}

	return c
}

// PagingStructureCache returns the cache the walker probes, or nil when
// the cache is disabled.
func (c *Comp) PagingStructureCache() *ptcache.PagingStructureCache {
	return c.pwc
}
