package vm

import "log"

const tableAlign = 0x1000

// TableMemory models the portion of simulated physical memory that holds
// paging structures. Tables are allocated at 4KB-aligned simulated base
// addresses and addressed by (table base, entry index) pairs.
type TableMemory struct {
	nextBase uint64
	tables   map[uint64][]PageTableEntry
}

// NewTableMemory creates an empty TableMemory. The first table is
// allocated at a non-zero base so that a zero base address always means
// "no table".
func NewTableMemory() *TableMemory {
	return &TableMemory{
		nextBase: tableAlign,
		tables:   make(map[uint64][]PageTableEntry),
	}
}

// AllocTable allocates a zero-filled table with numEntries entries and
// returns its simulated base address.
func (m *TableMemory) AllocTable(numEntries int) uint64 {
	base := m.nextBase
	m.tables[base] = make([]PageTableEntry, numEntries)
	m.nextBase += tableAlign

	return base
}

// WriteEntry stores an entry into a previously allocated table.
func (m *TableMemory) WriteEntry(tableBase, index uint64, pte PageTableEntry) {
	table := m.mustFindTable(tableBase)
	table[index] = pte
}

// ReadEntry reads one entry of a previously allocated table. Reading from
// an address that holds no table is a model defect.
func (m *TableMemory) ReadEntry(tableBase, index uint64) PageTableEntry {
	table := m.mustFindTable(tableBase)
	return table[index]
}

func (m *TableMemory) mustFindTable(tableBase uint64) []PageTableEntry {
	table, found := m.tables[tableBase]
	if !found {
		log.Panicf("no paging structure at simulated address 0x%x", tableBase)
	}

	return table
}

// A RadixPageTable builds and owns a multi-level page table in a
// TableMemory, with the hierarchy shape determined by the addressing mode.
type RadixPageTable struct {
	mem  *TableMemory
	mode Mode
	root uint64
}

// NewRadixPageTable creates a page table for the given mode, allocating
// its root-level table immediately.
func NewRadixPageTable(mem *TableMemory, mode Mode) *RadixPageTable {
	levels := HierarchyLevels(mode)

	return &RadixPageTable{
		mem:  mem,
		mode: mode,
		root: mem.AllocTable(levels[0].NumEntries()),
	}
}

// Root returns the simulated base address of the root-level table. This is
// the value a simulated context loads into its root-translation pointer.
func (t *RadixPageTable) Root() uint64 {
	return t.root
}

// Map installs a translation from the page containing va to the frame at
// pa, creating intermediate tables on demand. Existing intermediate tables
// are reused, so mappings that share an address prefix share tables.
func (t *RadixPageTable) Map(va, pa uint64) {
	levels := HierarchyLevels(t.mode)
	base := t.root

	for i, level := range levels[:len(levels)-1] {
		index := Bits(va, level.Hi, level.Lo)
		pte := t.mem.ReadEntry(base, index)

		if !pte.Present {
			next := levels[i+1]
			pte = PageTableEntry{
				BaseAddr: t.mem.AllocTable(next.NumEntries()),
				Present:  true,
				Writable: true,
			}
			t.mem.WriteEntry(base, index, pte)
		}

		base = pte.BaseAddr
	}

	leaf := levels[len(levels)-1]
	t.mem.WriteEntry(base, Bits(va, leaf.Hi, leaf.Lo), PageTableEntry{
		BaseAddr: pa,
		Present:  true,
		Writable: true,
	})
}
