// Package mvcc implements per-block version chains and the visibility
// rule that lets readers see a consistent snapshot without blocking
// writers.
package mvcc

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// DefaultGCThresholdVersions is the chain length above which a write
// schedules chain GC.
const DefaultGCThresholdVersions = 100

// DefaultGCThresholdMillis bounds how long a deleted version is kept
// before it becomes GC-eligible. It is compared against the logical
// timestamp counter (which advances once per mutating operation), not
// against wall-clock time.
const DefaultGCThresholdMillis = 3_600_000

// Stats are the MVCC manager's observable counters.
type Stats struct {
	TotalChains    int
	TotalVersions  int
	VersionsPruned uint64
}

// Manager owns every block's version chain and the two monotonic
// counters (timestamp, version id) that drive visibility. Per the
// design note replacing process-wide managers with explicit handles,
// a Manager is created once per mount and keeps both counters as its
// own atomic fields rather than package-level variables.
type Manager struct {
	mu               sync.RWMutex
	chains           map[types.BlockNumber]*types.VersionChain
	nextVersionID    atomic.Uint64
	timestampCounter atomic.Uint64
	gcThresholdVersions int
	gcThresholdMillis   uint64
	pruned           atomic.Uint64
}

// NewManager constructs an empty Manager. Both counters start at 1 so
// a zero value can always mean "unset" (e.g. DeletedBy == 0 means
// "not deleted").
func NewManager() *Manager {
	m := &Manager{
		chains:              make(map[types.BlockNumber]*types.VersionChain),
		gcThresholdVersions: DefaultGCThresholdVersions,
		gcThresholdMillis:   DefaultGCThresholdMillis,
	}
	m.nextVersionID.Store(1)
	m.timestampCounter.Store(1)
	return m
}

// SetGCThresholds overrides the defaults used to decide when a chain
// GC is scheduled and how long a deleted version survives.
func (m *Manager) SetGCThresholds(versions int, millis uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gcThresholdVersions = versions
	m.gcThresholdMillis = millis
}

func (m *Manager) tick() (types.VersionID, uint64) {
	ts := m.timestampCounter.Add(1)
	id := m.nextVersionID.Add(1)
	return types.VersionID(id), ts
}

// GetCurrentTimestamp returns the latest timestamp minted so far
// without advancing the counter.
func (m *Manager) GetCurrentTimestamp() uint64 {
	return m.timestampCounter.Load()
}

// CreateSnapshot reserves a fresh timestamp a future read can pin its
// view to.
func (m *Manager) CreateSnapshot() uint64 {
	return m.timestampCounter.Add(1)
}

// Write appends a new version to block's chain, linking it in front of
// the current head, and returns the fresh version id. If the
// post-append chain length exceeds the version-count GC threshold, the
// chain is garbage-collected immediately.
func (m *Manager) Write(block types.BlockNumber, tx types.TxID, data []byte) types.VersionID {
	versionID, ts := m.tick()

	m.mu.Lock()
	chain, ok := m.chains[block]
	if !ok {
		chain = &types.VersionChain{Block: block}
		m.chains[block] = chain
	}
	entry := &types.VersionChainEntry{
		VersionID: versionID,
		CreatedBy: tx,
		CreatedAt: ts,
		Data:      append([]byte(nil), data...),
		Next:      chain.Head,
	}
	if chain.Head != nil {
		chain.Head.Prev = entry
	}
	chain.Head = entry
	if chain.Tail == nil {
		chain.Tail = entry
	}
	chain.Count++
	needsGC := chain.Count > m.gcThresholdVersions
	m.mu.Unlock()

	if needsGC {
		m.GarbageCollectChain(block)
	}
	return versionID
}

// Read walks block's chain head-to-tail and returns the first entry
// visible to (tx, snapshotTS).
func (m *Manager) Read(block types.BlockNumber, tx types.TxID, snapshotTS uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chain, ok := m.chains[block]
	if !ok {
		return nil, vexerrors.New(vexerrors.KindEntryNotFound, "no version chain for block")
	}
	for e := chain.Head; e != nil; e = e.Next {
		if e.IsVisibleTo(tx, snapshotTS) {
			return e.Data, nil
		}
	}
	return nil, vexerrors.New(vexerrors.KindEntryNotFound, "no visible version")
}

// Delete marks versionID as deleted by tx at a fresh timestamp.
func (m *Manager) Delete(block types.BlockNumber, versionID types.VersionID, tx types.TxID) error {
	_, ts := m.tick()

	m.mu.Lock()
	defer m.mu.Unlock()
	chain, ok := m.chains[block]
	if !ok {
		return vexerrors.New(vexerrors.KindEntryNotFound, "no version chain for block")
	}
	for e := chain.Head; e != nil; e = e.Next {
		if e.VersionID == versionID {
			if e.Flags&types.VersionDeleted != 0 {
				return vexerrors.New(vexerrors.KindInvalidOperation, "version already deleted")
			}
			e.DeletedBy = tx
			e.DeletedAt = ts
			e.Flags |= types.VersionDeleted
			return nil
		}
	}
	return vexerrors.New(vexerrors.KindEntryNotFound, "version not found")
}

// CheckVersionConflict reports whether both transactions have
// contributed a version to block's chain, for optimistic concurrency
// control by the caller.
func (m *Manager) CheckVersionConflict(block types.BlockNumber, txA, txB types.TxID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chain, ok := m.chains[block]
	if !ok {
		return false
	}
	sawA, sawB := false, false
	for e := chain.Head; e != nil; e = e.Next {
		if e.CreatedBy == txA {
			sawA = true
		}
		if e.CreatedBy == txB {
			sawB = true
		}
	}
	return sawA && sawB
}

// GarbageCollectChain prunes every deleted version in block's chain
// older than the timestamp GC threshold, preserving at least one
// version. An emptied chain is removed from the index.
func (m *Manager) GarbageCollectChain(block types.BlockNumber) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain, ok := m.chains[block]
	if !ok {
		return 0
	}
	cutoff := saturatingSub(m.timestampCounter.Load(), m.gcThresholdMillis)

	removed := 0
	e := chain.Head
	for e != nil {
		next := e.Next
		eligible := e.Flags&types.VersionDeleted != 0 && e.DeletedAt < cutoff
		if eligible && chain.Count > 1 {
			if e.Prev != nil {
				e.Prev.Next = e.Next
			} else {
				chain.Head = e.Next
			}
			if e.Next != nil {
				e.Next.Prev = e.Prev
			} else {
				chain.Tail = e.Prev
			}
			chain.Count--
			removed++
			m.pruned.Add(1)
		}
		e = next
	}
	if chain.Count == 0 {
		delete(m.chains, block)
	}
	return removed
}

// GarbageCollectAll runs GarbageCollectChain over every tracked chain.
func (m *Manager) GarbageCollectAll() int {
	m.mu.RLock()
	blocks := make([]types.BlockNumber, 0, len(m.chains))
	for b := range m.chains {
		blocks = append(blocks, b)
	}
	m.mu.RUnlock()

	total := 0
	for _, b := range blocks {
		total += m.GarbageCollectChain(b)
	}
	return total
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// GetChain returns the version chain for block, if any.
func (m *Manager) GetChain(block types.BlockNumber) (*types.VersionChain, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chains[block]
	return c, ok
}

// GetStats reports the manager's observable statistics.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := 0
	for _, c := range m.chains {
		versions += c.Count
	}
	return Stats{
		TotalChains:    len(m.chains),
		TotalVersions:  versions,
		VersionsPruned: m.pruned.Load(),
	}
}
