package ptcache

import "github.com/uarchsim/vmsim/sim/naming"

// Mask widths per level: bits above and below each level's key range are
// stripped before indexing.
const (
	maskBitsHigh = 12

	topMaskBitsLow    = 39
	middleMaskBitsLow = 30
	lowerMaskBitsLow  = 21
)

// A Builder can build paging-structure caches.
type Builder struct {
	topCapacity    int
	middleCapacity int
	lowerCapacity  int
}

// MakeBuilder returns a Builder with default per-level capacities.
func MakeBuilder() Builder {
	return Builder{
		topCapacity:    2,
		middleCapacity: 4,
		lowerCapacity:  32,
	}
}

// WithTopCapacity sets the entry count of the top-level cache.
func (b Builder) WithTopCapacity(n int) Builder {
	b.topCapacity = n
	return b
}

// WithMiddleCapacity sets the entry count of the middle-level cache.
func (b Builder) WithMiddleCapacity(n int) Builder {
	b.middleCapacity = n
	return b
}

// WithLowerCapacity sets the entry count of the lower-level cache.
func (b Builder) WithLowerCapacity(n int) Builder {
	b.lowerCapacity = n
	return b
}

// Build creates a PagingStructureCache. The name is used for diagnostics
// and stats labeling only.
func (b Builder) Build(name string) *PagingStructureCache {
	c := &PagingStructureCache{
		NamedBase: naming.MakeNamedBase(name),
	}

	c.topCache = newTranslationCache(name+".TopCache",
		LevelTop, b.topCapacity, maskBitsHigh, topMaskBitsLow)
	c.middleCache = newTranslationCache(name+".MiddleCache",
		LevelMiddle, b.middleCapacity, maskBitsHigh, middleMaskBitsLow)
	c.lowerCache = newTranslationCache(name+".LowerCache",
		LevelLower, b.lowerCapacity, maskBitsHigh, lowerMaskBitsLow)

	return c
}
