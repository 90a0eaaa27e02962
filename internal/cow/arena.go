// Package cow implements the copy-on-write engine: per-inode extent
// mappings, lazy block duplication on write, and snapshot creation.
//
// Parent-chain snapshots use an arena of mappings indexed by generation
// id with a ParentGeneration field rather than an owned parent pointer,
// per the design note that replaces the reference implementation's
// ownership-cycle workaround with something Go's garbage collector
// handles naturally.
package cow

import (
	"sync"

	"github.com/vexfs-project/vexfs-core/internal/types"
)

// Arena stores every CowMapping ever created (live mappings and
// snapshots alike), indexed by generation id.
type Arena struct {
	mu      sync.RWMutex
	byGen   map[uint64]*types.CowMapping
	nextGen uint64
}

// NewArena constructs an empty Arena.
func NewArena() *Arena {
	return &Arena{byGen: make(map[uint64]*types.CowMapping), nextGen: 1}
}

// allocGeneration returns a fresh, monotonically increasing generation
// id.
func (a *Arena) allocGeneration() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := a.nextGen
	a.nextGen++
	return g
}

// store registers m under its Generation at the moment of creation.
// That value becomes m's permanent arena key: callers that later bump
// m.Generation as a version counter (AddExtent, CowWrite) must not
// mistake the current field value for this key, since store is never
// called again for the same mapping.
func (a *Arena) store(m *types.CowMapping) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byGen[m.Generation] = m
}

// get looks up a mapping by generation id.
func (a *Arena) get(gen uint64) (*types.CowMapping, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.byGen[gen]
	return m, ok
}

// delete removes a mapping from the arena.
func (a *Arena) delete(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.byGen, gen)
}

// All returns every mapping currently held in the arena, for GC
// reachability walks.
func (a *Arena) All() []*types.CowMapping {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*types.CowMapping, 0, len(a.byGen))
	for _, m := range a.byGen {
		out = append(out, m)
	}
	return out
}
