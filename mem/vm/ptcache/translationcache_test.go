package ptcache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/uarchsim/vmsim/mem/vm"
	"github.com/uarchsim/vmsim/mem/vm/ptcache"
)

func descriptor(base uint64) vm.PageTableEntry {
	return vm.PageTableEntry{BaseAddr: base, Present: true}
}

var _ = Describe("TranslationCache", func() {
	Context("lower-level cache", func() {
		var c *ptcache.TranslationCache

		BeforeEach(func() {
			c = ptcache.NewTranslationCache("PDECache", ptcache.LevelLower, 2,
				ptcache.MaskBitsHigh, ptcache.LowerMaskBitsLow)
		})

		It("should hit on an inserted prefix", func() {
			c.Insert(0x40000000, descriptor(0x1000), vm.ModeLong)

			entry := c.Lookup(0x40000000, vm.ModeLong, true)

			Expect(entry).NotTo(BeNil())
			Expect(entry.Descriptor).To(Equal(descriptor(0x1000)))
			Expect(c.Stats().Hit).To(Equal(uint64(1)))
		})

		It("should ignore bits below the level's key range", func() {
			c.Insert(0x40000000, descriptor(0x1000), vm.ModeLong)

			entry := c.Lookup(0x401ff123, vm.ModeLong, true)

			Expect(entry).NotTo(BeNil())
		})

		It("should miss on an absent prefix", func() {
			entry := c.Lookup(0x40000000, vm.ModeLong, true)

			Expect(entry).To(BeNil())
			Expect(c.Stats().Miss).To(Equal(uint64(1)))
		})

		It("should return the existing entry on duplicate insert", func() {
			e1 := c.Insert(0x40000000, descriptor(0x1000), vm.ModeLong)

			e2 := c.Insert(0x40000000, descriptor(0x1000), vm.ModeLong)

			Expect(e2).To(BeIdenticalTo(e1))
			Expect(c.OccupiedCount()).To(Equal(1))
			Expect(c.Stats().Insert).To(Equal(uint64(1)))
		})

		It("should panic when a duplicate insert disagrees on the "+
			"descriptor", func() {
			c.Insert(0x40000000, descriptor(0x1000), vm.ModeLong)

			Expect(func() {
				c.Insert(0x40000000, descriptor(0x2000), vm.ModeLong)
			}).To(Panic())
		})

		It("should never exceed its capacity", func() {
			addrs := []uint64{
				0x00200000, 0x00400000, 0x00600000, 0x00800000, 0x00a00000,
			}
			for i, addr := range addrs {
				c.Insert(addr, descriptor(uint64(i+1)<<12), vm.ModeLong)
				Expect(c.OccupiedCount()).To(BeNumerically("<=", 2))
			}

			Expect(c.Stats().Insert).To(Equal(uint64(5)))
			Expect(c.Stats().Evict).To(Equal(uint64(3)))
		})

		It("should evict the least recently used entry", func() {
			c.Insert(0x00200000, descriptor(0x1000), vm.ModeLong)
			c.Insert(0x00400000, descriptor(0x2000), vm.ModeLong)

			c.Lookup(0x00200000, vm.ModeLong, true)
			c.Insert(0x00600000, descriptor(0x3000), vm.ModeLong)

			Expect(c.Lookup(0x00400000, vm.ModeLong, true)).To(BeNil())
			Expect(c.Lookup(0x00200000, vm.ModeLong, true)).NotTo(BeNil())
			Expect(c.Lookup(0x00600000, vm.ModeLong, true)).NotTo(BeNil())
		})

		It("should leave the eviction order alone when a lookup skips "+
			"the recency update", func() {
			c.Insert(0x00200000, descriptor(0x1000), vm.ModeLong)
			c.Insert(0x00400000, descriptor(0x2000), vm.ModeLong)

			c.Lookup(0x00200000, vm.ModeLong, false)
			c.Insert(0x00600000, descriptor(0x3000), vm.ModeLong)

			Expect(c.Lookup(0x00200000, vm.ModeLong, true)).To(BeNil())
			Expect(c.Lookup(0x00400000, vm.ModeLong, true)).NotTo(BeNil())
		})

		It("should miss on everything after a flush", func() {
			c.Insert(0x00200000, descriptor(0x1000), vm.ModeLong)
			c.Insert(0x00400000, descriptor(0x2000), vm.ModeLong)

			c.Flush()

			Expect(c.OccupiedCount()).To(Equal(0))
			Expect(c.Lookup(0x00200000, vm.ModeLong, true)).To(BeNil())
			Expect(c.Lookup(0x00400000, vm.ModeLong, true)).To(BeNil())
			Expect(c.Stats().Flush).To(Equal(uint64(1)))
		})

		It("should treat flushing an empty cache as a no-op", func() {
			c.Flush()
			c.Flush()

			Expect(c.OccupiedCount()).To(Equal(0))
			Expect(c.Stats().Flush).To(Equal(uint64(2)))
		})

		It("should keep 2MB-granularity keys apart under the PAE legacy "+
			"mode", func() {
			c.Insert(0x00000000, descriptor(0x1000), vm.ModeLegacyPAE)
			c.Insert(0x00200000, descriptor(0x2000), vm.ModeLegacyPAE)

			Expect(c.OccupiedCount()).To(Equal(2))
		})

		It("should collapse 2MB-apart addresses to one key under the "+
			"non-PAE legacy mode", func() {
			e1 := c.Insert(0x00000000, descriptor(0x1000), vm.ModeLegacy)

			e2 := c.Insert(0x00200000, descriptor(0x1000), vm.ModeLegacy)

			Expect(e2).To(BeIdenticalTo(e1))
			Expect(c.OccupiedCount()).To(Equal(1))
		})

		It("should run the capacity-2 end-to-end scenario", func() {
			e1 := c.Insert(0x00200000, descriptor(0x1000), vm.ModeLong)
			Expect(c.OccupiedCount()).To(Equal(1))

			e2 := c.Insert(0x00400000, descriptor(0x2000), vm.ModeLong)
			Expect(c.OccupiedCount()).To(Equal(2))
			Expect(e2).NotTo(BeIdenticalTo(e1))

			Expect(c.Lookup(0x00200000, vm.ModeLong, true)).
				To(BeIdenticalTo(e1))

			e3 := c.Insert(0x00600000, descriptor(0x3000), vm.ModeLong)
			Expect(e3.Descriptor).To(Equal(descriptor(0x3000)))

			Expect(c.Lookup(0x00400000, vm.ModeLong, true)).To(BeNil())
			Expect(c.Lookup(0x00200000, vm.ModeLong, true)).NotTo(BeNil())
			Expect(c.Lookup(0x00600000, vm.ModeLong, true)).NotTo(BeNil())
		})
	})

	Context("middle-level cache", func() {
		var c *ptcache.TranslationCache

		BeforeEach(func() {
			c = ptcache.NewTranslationCache("PDPCache", ptcache.LevelMiddle, 4,
				ptcache.MaskBitsHigh, ptcache.MiddleMaskBitsLow)
		})

		It("should key on bits 31:30 under the PAE legacy mode", func() {
			e1 := c.Insert(0x40000000, descriptor(0x1000), vm.ModeLegacyPAE)

			e2 := c.Insert(0x5ff00000, descriptor(0x1000), vm.ModeLegacyPAE)
			e3 := c.Insert(0x80000000, descriptor(0x2000), vm.ModeLegacyPAE)

			Expect(e2).To(BeIdenticalTo(e1))
			Expect(e3).NotTo(BeIdenticalTo(e1))
		})

		It("should panic when probed under the non-PAE legacy mode", func() {
			Expect(func() {
				c.Lookup(0x40000000, vm.ModeLegacy, true)
			}).To(Panic())
		})
	})

	Context("top-level cache", func() {
		var c *ptcache.TranslationCache

		BeforeEach(func() {
			c = ptcache.NewTranslationCache("PML4Cache", ptcache.LevelTop, 2,
				ptcache.MaskBitsHigh, ptcache.TopMaskBitsLow)
		})

		It("should use the full address in long mode", func() {
			c.Insert(0x0000008000000000, descriptor(0x1000), vm.ModeLong)

			entry := c.Lookup(0x0000008000000000, vm.ModeLong, true)

			Expect(entry).NotTo(BeNil())
		})

		It("should panic when probed under any legacy mode", func() {
			Expect(func() {
				c.Lookup(0x40000000, vm.ModeLegacyPAE, true)
			}).To(Panic())
			Expect(func() {
				c.Lookup(0x40000000, vm.ModeLegacy, true)
			}).To(Panic())
			Expect(func() {
				c.Insert(0x40000000, descriptor(0x1000), vm.ModeLegacyPAE)
			}).To(Panic())
		})
	})

	It("should reject a zero capacity", func() {
		Expect(func() {
			ptcache.NewTranslationCache("PDECache", ptcache.LevelLower, 0,
				ptcache.MaskBitsHigh, ptcache.LowerMaskBitsLow)
		}).To(Panic())
	})

	It("should panic when used without initialization", func() {
		c := &ptcache.TranslationCache{}

		Expect(func() {
			c.Lookup(0x40000000, vm.ModeLong, true)
		}).To(Panic())
	})
})
