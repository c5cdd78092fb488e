// Package trie implements the prefix-keyed index that backs the
// translation caches. Keys are 64-bit values of which only a configurable
// number of high-order bits are significant; a lookup returns the entry
// whose stored prefix matches the searched key.
package trie

import "log"

// MaxBits is the number of bits in a key.
const MaxBits = 64

// A Handle refers to an occupied position in the trie. Holding the handle
// of an inserted key allows removal without a fresh walk from the root.
type Handle struct {
	node *node
}

type node struct {
	parent   *node
	children [2]*node
	terminal bool
	slot     int
}

// A Trie maps key prefixes to pool slot numbers.
type Trie struct {
	root node
}

// New creates an empty Trie.
func New() *Trie {
	return &Trie{}
}

// Insert adds a key whose top width bits are significant and associates it
// with slot. It returns a handle for later removal. The key must not
// collide with an already-stored prefix; callers check with Lookup first.
func (t *Trie) Insert(key uint64, width uint, slot int) *Handle {
	if width == 0 || width > MaxBits {
		log.Panicf("invalid key width %d", width)
	}

	n := &t.root
	for i := uint(0); i < width; i++ {
		if n.terminal {
			log.Panicf("key 0x%x collides with a stored shorter prefix", key)
		}

		b := (key >> (MaxBits - 1 - i)) & 1
		if n.children[b] == nil {
			n.children[b] = &node{parent: n}
		}
		n = n.children[b]
	}

	if n.terminal || n.children[0] != nil || n.children[1] != nil {
		log.Panicf("key 0x%x is already indexed", key)
	}

	n.terminal = true
	n.slot = slot

	return &Handle{node: n}
}

// Lookup walks the trie along key and returns the slot stored under the
// first matching prefix.
func (t *Trie) Lookup(key uint64) (slot int, ok bool) {
	n := &t.root
	for i := uint(0); i < MaxBits; i++ {
		if n.terminal {
			return n.slot, true
		}

		b := (key >> (MaxBits - 1 - i)) & 1
		n = n.children[b]
		if n == nil {
			return 0, false
		}
	}

	if n.terminal {
		return n.slot, true
	}

	return 0, false
}

// Remove deletes the key that the handle refers to, pruning the branch
// that becomes empty. The handle must come from a previous Insert and must
// not have been removed before.
func (t *Trie) Remove(h *Handle) {
	n := h.node
	if !n.terminal {
		panic("handle does not refer to an indexed key")
	}

	n.terminal = false
	for n != &t.root && !n.terminal &&
		n.children[0] == nil && n.children[1] == nil {
		parent := n.parent
		if parent.children[0] == n {
			parent.children[0] = nil
		} else {
			parent.children[1] = nil
		}
		n = parent
	}
}
