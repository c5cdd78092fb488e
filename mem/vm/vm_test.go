package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Bit extraction", func() {
	It("should keep extracted bits in place", func() {
		Expect(MBits(0xdeadbeef, 31, 30)).To(Equal(uint64(0xc0000000)))
		Expect(MBits(0xffffffff, 31, 21)).To(Equal(uint64(0xffe00000)))
		Expect(MBits(0x00200000, 31, 22)).To(Equal(uint64(0)))
		Expect(MBits(0x00200000, 31, 21)).To(Equal(uint64(0x00200000)))
	})

	It("should shift extracted index bits down", func() {
		Expect(Bits(0x0000008000000000, 47, 39)).To(Equal(uint64(1)))
		Expect(Bits(0x00000000ffe00000, 29, 21)).To(Equal(uint64(0x1ff)))
		Expect(Bits(0x1000, 20, 12)).To(Equal(uint64(1)))
	})
})

var _ = Describe("HierarchyLevels", func() {
	It("should describe the four-level long-mode hierarchy", func() {
		levels := HierarchyLevels(ModeLong)

		Expect(levels).To(HaveLen(4))
		Expect(levels[0]).To(Equal(LevelRange{47, 39}))
		Expect(levels[3]).To(Equal(LevelRange{20, 12}))
		Expect(levels[0].NumEntries()).To(Equal(512))
	})

	It("should describe the three-level PAE hierarchy", func() {
		levels := HierarchyLevels(ModeLegacyPAE)

		Expect(levels).To(HaveLen(3))
		Expect(levels[0]).To(Equal(LevelRange{31, 30}))
		Expect(levels[0].NumEntries()).To(Equal(4))
	})

	It("should describe the two-level legacy hierarchy", func() {
		levels := HierarchyLevels(ModeLegacy)

		Expect(levels).To(HaveLen(2))
		Expect(levels[0]).To(Equal(LevelRange{31, 22}))
		Expect(levels[0].NumEntries()).To(Equal(1024))
	})
})

var _ = Describe("TableMemory", func() {
	var mem *TableMemory

	BeforeEach(func() {
		mem = NewTableMemory()
	})

	It("should read back written entries", func() {
		base := mem.AllocTable(512)

		pte := PageTableEntry{BaseAddr: 0x2000, Present: true}
		mem.WriteEntry(base, 5, pte)

		Expect(mem.ReadEntry(base, 5)).To(Equal(pte))
		Expect(mem.ReadEntry(base, 6).Present).To(BeFalse())
	})

	It("should allocate tables at distinct non-zero bases", func() {
		base1 := mem.AllocTable(512)
		base2 := mem.AllocTable(4)

		Expect(base1).NotTo(BeZero())
		Expect(base2).NotTo(Equal(base1))
	})

	It("should panic when reading from a non-table address", func() {
		Expect(func() { mem.ReadEntry(0xdead000, 0) }).To(Panic())
	})
})

var _ = Describe("RadixPageTable", func() {
	var (
		mem *TableMemory
		pt  *RadixPageTable
	)

	BeforeEach(func() {
		mem = NewTableMemory()
		pt = NewRadixPageTable(mem, ModeLong)
	})

	It("should resolve a mapped address through all levels", func() {
		va := uint64(0x0000008040201000)
		pt.Map(va, 0x99000)

		levels := HierarchyLevels(ModeLong)
		base := pt.Root()
		var pte PageTableEntry
		for _, level := range levels {
			pte = mem.ReadEntry(base, Bits(va, level.Hi, level.Lo))
			Expect(pte.Present).To(BeTrue())
			base = pte.BaseAddr
		}

		Expect(pte.BaseAddr).To(Equal(uint64(0x99000)))
	})

	It("should share intermediate tables between neighboring pages", func() {
		pt.Map(0x1000, 0x10000)
		pt.Map(0x2000, 0x11000)

		levels := HierarchyLevels(ModeLong)
		top := levels[0]
		rootEntry := mem.ReadEntry(pt.Root(), Bits(0x1000, top.Hi, top.Lo))
		rootEntry2 := mem.ReadEntry(pt.Root(), Bits(0x2000, top.Hi, top.Lo))

		Expect(rootEntry).To(Equal(rootEntry2))
	})

	It("should build shallower hierarchies for legacy modes", func() {
		legacyPT := NewRadixPageTable(mem, ModeLegacy)
		va := uint64(0x00801000)
		legacyPT.Map(va, 0x55000)

		pd := legacyPT.Root()
		pde := mem.ReadEntry(pd, Bits(va, 31, 22))
		Expect(pde.Present).To(BeTrue())

		pte := mem.ReadEntry(pde.BaseAddr, Bits(va, 21, 12))
		Expect(pte.BaseAddr).To(Equal(uint64(0x55000)))
	})
})
