package cache

import (
	"sync"

	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Strategy names the active sub-cache new inserts are routed to.
type Strategy int

const (
	StrategyLRU Strategy = iota
	StrategyLFU
)

// DefaultMonitorWindowSeconds is the interval between adaptive strategy
// evaluations.
const DefaultMonitorWindowSeconds = 3600

// switchMarginPoints is the minimum hit-rate-percentage-point gap the
// winning discipline must hold over the loser before becoming active.
const switchMarginPoints = 5.0

// Adaptive splits its capacity in half between an LRU and an LFU
// sub-cache. Both halves keep serving hits for already-resident
// entries; only new inserts are routed to whichever strategy is
// currently active, and that routing is re-evaluated once per monitor
// window. A new dirty block that the active half cannot admit falls
// back to the other half (see MarkDirty).
type Adaptive struct {
	mu             sync.Mutex
	lru            *LRU
	lfu            *LFU
	active         Strategy
	monitorWindow  uint64
	lastEvaluation uint64
}

// NewAdaptive constructs an Adaptive cache with maxEntries split evenly
// between its LRU and LFU halves.
func NewAdaptive(maxEntries int) *Adaptive {
	half := maxEntries / 2
	return &Adaptive{
		lru:           NewLRU(half),
		lfu:           NewLFU(maxEntries - half),
		active:        StrategyLRU,
		monitorWindow: DefaultMonitorWindowSeconds,
	}
}

func (a *Adaptive) Get(block types.BlockNumber, now uint64) ([]byte, bool) {
	if data, ok := a.lru.Get(block, now); ok {
		return data, ok
	}
	return a.lfu.Get(block, now)
}

func (a *Adaptive) Insert(block types.BlockNumber, data []byte, now uint64) error {
	a.mu.Lock()
	a.evaluateLocked(now)
	strategy := a.active
	a.mu.Unlock()

	if strategy == StrategyLRU {
		return a.lru.Insert(block, data, now)
	}
	return a.lfu.Insert(block, data, now)
}

func (a *Adaptive) Remove(block types.BlockNumber) (*types.CacheEntry, bool) {
	if e, ok := a.lru.Remove(block); ok {
		return e, true
	}
	return a.lfu.Remove(block)
}

func (a *Adaptive) FlushDirty() []WriteBack {
	return append(a.lru.FlushDirty(), a.lfu.FlushDirty()...)
}

func (a *Adaptive) Stats() types.CacheStats {
	lruStats := a.lru.Stats()
	lfuStats := a.lfu.Stats()
	return types.CacheStats{
		Hits:       lruStats.Hits + lfuStats.Hits,
		Misses:     lruStats.Misses + lfuStats.Misses,
		DirtyCount: lruStats.DirtyCount + lfuStats.DirtyCount,
		EntryCount: lruStats.EntryCount + lfuStats.EntryCount,
		MaxEntries: lruStats.MaxEntries + lfuStats.MaxEntries,
	}
}

// ActiveStrategy reports which discipline currently receives new
// inserts.
func (a *Adaptive) ActiveStrategy() Strategy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// evaluateLocked switches a.active when a monitor window has elapsed
// and one discipline's hit rate beats the other's by more than the
// switch margin. Assumes a.mu held.
func (a *Adaptive) evaluateLocked(now uint64) {
	if now < a.lastEvaluation+a.monitorWindow {
		return
	}
	a.lastEvaluation = now

	lruRate := a.lru.Stats().HitRate() * 100
	lfuRate := a.lfu.Stats().HitRate() * 100

	switch {
	case lruRate-lfuRate > switchMarginPoints:
		a.active = StrategyLRU
	case lfuRate-lruRate > switchMarginPoints:
		a.active = StrategyLFU
	}
}

// MarkDirty routes a dirty-mark to whichever sub-cache currently holds
// block, inserting via the active strategy if the block is not
// resident in either half. When the active half cannot admit the block
// (every entry there is dirty), the other half is tried, so the cache
// as a whole holds up to its full capacity of dirty entries.
func (a *Adaptive) MarkDirty(block types.BlockNumber, data []byte, now uint64) error {
	if _, ok := a.lru.Get(block, now); ok {
		return a.lru.MarkDirty(block, data, now)
	}
	if _, ok := a.lfu.Get(block, now); ok {
		return a.lfu.MarkDirty(block, data, now)
	}
	a.mu.Lock()
	strategy := a.active
	a.mu.Unlock()
	primary, secondary := dirtyMarker(a.lru), dirtyMarker(a.lfu)
	if strategy == StrategyLFU {
		primary, secondary = secondary, primary
	}
	err := primary.MarkDirty(block, data, now)
	if err != nil && secondary.MarkDirty(block, data, now) == nil {
		return nil
	}
	return err
}

var _ Discipline = (*Adaptive)(nil)
var _ Discipline = (*LRU)(nil)
var _ Discipline = (*LFU)(nil)

// dirtyMarker is satisfied by every discipline that supports
// MarkDirty, used by Manager.WriteBlock in write-back mode.
type dirtyMarker interface {
	MarkDirty(block types.BlockNumber, data []byte, now uint64) error
}

var (
	_ dirtyMarker = (*LRU)(nil)
	_ dirtyMarker = (*LFU)(nil)
	_ dirtyMarker = (*Adaptive)(nil)
)

// ErrNoSpace is returned by Insert when no entry is evictable.
var ErrNoSpace = vexerrors.New(vexerrors.KindNoSpace, "no evictable entry")
