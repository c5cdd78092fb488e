package ptcache

import (
	"log"

	"github.com/uarchsim/vmsim/mem/vm"
)

// Level identifies which non-terminal step of a page-table walk a
// translation cache serves. The set of levels is fixed by the modeled
// hardware.
type Level int

const (
	// LevelTop serves entries read from the root-level table.
	LevelTop Level = iota

	// LevelMiddle serves entries read from the second-level table.
	LevelMiddle

	// LevelLower serves entries read from the table directly above the
	// leaf level.
	LevelLower
)

// String returns the name of the level.
func (l Level) String() string {
	switch l {
	case LevelTop:
		return "top"
	case LevelMiddle:
		return "middle"
	case LevelLower:
		return "lower"
	}

	return "unknown"
}

// deriveKey reduces a virtual page number to the key material for this
// level under the given addressing mode. Legacy modes use shallower
// hierarchies, so some level/mode combinations do not exist in hardware;
// probing one of those is a defect of the calling model, not a runtime
// condition.
func (l Level) deriveKey(vpn uint64, mode vm.Mode) uint64 {
	switch l {
	case LevelTop:
		if mode != vm.ModeLong {
			log.Panicf("top-level cache must not be probed in %s mode", mode)
		}
		return vpn

	case LevelMiddle:
		switch mode {
		case vm.ModeLong:
			return vpn
		case vm.ModeLegacyPAE:
			return vm.MBits(vpn, 31, 30)
		default:
			log.Panicf("middle-level cache must not be probed in %s mode",
				mode)
		}

	case LevelLower:
		switch mode {
		case vm.ModeLong:
			return vpn
		case vm.ModeLegacyPAE:
			return vm.MBits(vpn, 31, 21)
		case vm.ModeLegacy:
			return vm.MBits(vpn, 31, 22)
		default:
			log.Panicf("lower-level cache met unknown mode %d", mode)
		}
	}

	log.Panicf("unknown cache level %d", l)
	return 0
}
