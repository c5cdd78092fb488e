package ptcache

import "github.com/uarchsim/vmsim/sim/hooking"

// HookPosInsert marks when a cache stores a new entry.
var HookPosInsert = &hooking.HookPos{Name: "TranslationCache Insert"}

// HookPosEvict marks when a cache recycles its least-recently-used entry.
var HookPosEvict = &hooking.HookPos{Name: "TranslationCache Evict"}

// HookPosHit marks when a lookup finds an entry.
var HookPosHit = &hooking.HookPos{Name: "TranslationCache Hit"}

// HookPosMiss marks when a lookup finds nothing.
var HookPosMiss = &hooking.HookPos{Name: "TranslationCache Miss"}

// HookPosFlush marks when a cache is flushed.
var HookPosFlush = &hooking.HookPos{Name: "TranslationCache Flush"}

// Stats is a snapshot of the event counters of one translation cache.
// Each counter increases by exactly one per corresponding internal event.
type Stats struct {
	Flush  uint64
	Insert uint64
	Evict  uint64
	Hit    uint64
	Miss   uint64
}

// A CounterTracer aggregates cache events into monotonic counters. Attach
// one to a TranslationCache with AcceptHook.
type CounterTracer struct {
	stats Stats
}

// NewCounterTracer creates a CounterTracer with all counters at zero.
func NewCounterTracer() *CounterTracer {
	return &CounterTracer{}
}

// Func counts the event that triggered the hook.
func (t *CounterTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosInsert:
		t.stats.Insert++
	case HookPosEvict:
		t.stats.Evict++
	case HookPosHit:
		t.stats.Hit++
	case HookPosMiss:
		t.stats.Miss++
	case HookPosFlush:
		t.stats.Flush++
	}
}

// Stats returns the counters accumulated so far.
func (t *CounterTracer) Stats() Stats {
	return t.stats
}
