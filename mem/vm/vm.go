// Package vm provides the building blocks for modeling the virtual-memory
// subsystem of a CPU, including addressing modes, paging-structure entries,
// and the simulated memory that holds multi-level page tables.
package vm

import "log"

// Mode selects the paging hierarchy that a simulated context uses.
// Narrower legacy modes use shallower, coarser-granularity hierarchies.
type Mode int

const (
	// ModeLong is the full-width mode with a four-level hierarchy.
	ModeLong Mode = iota

	// ModeLegacyPAE is the 32-bit legacy mode with physical address
	// extension, using a three-level hierarchy.
	ModeLegacyPAE

	// ModeLegacy is the 32-bit legacy mode without physical address
	// extension, using a two-level hierarchy.
	ModeLegacy
)

// String returns the name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeLong:
		return "long"
	case ModeLegacyPAE:
		return "legacy-pae"
	case ModeLegacy:
		return "legacy"
	}

	return "unknown"
}

// A PageTableEntry is one entry of a paging structure. It holds the base
// address of the next-level table (or of the final page frame) together
// with permission and attribute bits. Entries are immutable values; the
// model never updates an entry in place.
type PageTableEntry struct {
	BaseAddr  uint64
	Present   bool
	Writable  bool
	User      bool
	Accessed  bool
	Dirty     bool
	NoExecute bool
}

// MBits extracts bits [hi:lo] of v, keeping them at their original
// position. Bits outside the range are cleared.
func MBits(v uint64, hi, lo uint) uint64 {
	return v & (^uint64(0) >> (63 - hi)) & (^uint64(0) << lo)
}

// Bits extracts bits [hi:lo] of v, shifted down to bit 0.
func Bits(v uint64, hi, lo uint) uint64 {
	return MBits(v, hi, lo) >> lo
}

// A LevelRange is the virtual-address bit range that indexes one level of
// a paging hierarchy.
type LevelRange struct {
	Hi, Lo uint
}

// NumEntries returns the number of entries of a table at this level.
func (r LevelRange) NumEntries() int {
	return 1 << (r.Hi - r.Lo + 1)
}

// HierarchyLevels returns the index bit ranges of the paging hierarchy for
// a mode, from the root-level table down to the last-level (leaf) table.
func HierarchyLevels(mode Mode) []LevelRange {
	switch mode {
	case ModeLong:
		return []LevelRange{{47, 39}, {38, 30}, {29, 21}, {20, 12}}
	case ModeLegacyPAE:
		return []LevelRange{{31, 30}, {29, 21}, {20, 12}}
	case ModeLegacy:
		return []LevelRange{{31, 22}, {21, 12}}
	}

	log.Panicf("unknown addressing mode %d", mode)
	return nil
}

// PageOffsetBits returns the number of offset bits within a final page.
func PageOffsetBits(mode Mode) uint {
	levels := HierarchyLevels(mode)
	return levels[len(levels)-1].Lo
}
