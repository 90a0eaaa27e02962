// Package cache implements the block cache: interchangeable LRU, LFU
// and Adaptive eviction disciplines behind one Discipline contract,
// plus a Manager layering write-through/write-back semantics
// on top.
package cache

import (
	"sort"
	"sync"

	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Discipline is the contract every eviction strategy satisfies.
type Discipline interface {
	Get(block types.BlockNumber, now uint64) ([]byte, bool)
	Insert(block types.BlockNumber, data []byte, now uint64) error
	Remove(block types.BlockNumber) (*types.CacheEntry, bool)
	FlushDirty() []WriteBack
	Stats() types.CacheStats
}

// WriteBack is one dirty entry handed back by FlushDirty.
type WriteBack struct {
	Block types.BlockNumber
	Data  []byte
}

// baseCache holds the map-of-entries structure LRU and LFU share; they
// differ only in which entry evictCandidate picks.
type baseCache struct {
	mu         sync.Mutex
	entries    map[types.BlockNumber]*types.CacheEntry
	maxEntries int
	hits       uint64
	misses     uint64
}

func newBaseCache(maxEntries int) baseCache {
	return baseCache{entries: make(map[types.BlockNumber]*types.CacheEntry), maxEntries: maxEntries}
}

func (c *baseCache) getLocked(block types.BlockNumber, now uint64) ([]byte, bool) {
	e, ok := c.entries[block]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	e.MarkAccessed(now)
	out := make([]byte, len(e.Data))
	copy(out, e.Data)
	return out, true
}

func (c *baseCache) removeLocked(block types.BlockNumber) (*types.CacheEntry, bool) {
	e, ok := c.entries[block]
	if ok {
		delete(c.entries, block)
	}
	return e, ok
}

func (c *baseCache) flushDirtyLocked() []WriteBack {
	var out []WriteBack
	for _, e := range c.entries {
		if e.State == types.CacheDirty {
			data := make([]byte, len(e.Data))
			copy(data, e.Data)
			out = append(out, WriteBack{Block: e.Block, Data: data})
			e.MarkClean()
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Block < out[j].Block })
	return out
}

func (c *baseCache) statsLocked() types.CacheStats {
	dirty := 0
	for _, e := range c.entries {
		if e.State == types.CacheDirty {
			dirty++
		}
	}
	return types.CacheStats{
		Hits:       c.hits,
		Misses:     c.misses,
		DirtyCount: dirty,
		EntryCount: len(c.entries),
		MaxEntries: c.maxEntries,
	}
}

// insertLocked evicts per pickVictim until there is room, then inserts
// a fresh Clean entry for block/data. pickVictim selects the best
// eviction candidate by replacement order without regard to dirtiness;
// insertLocked then classifies that candidate. A dirty victim fails
// the insert with CacheDirty (a flush must run first) rather than
// being skipped in favor of a clean one, and NoSpace is returned only
// when no candidate is evictable at all (every entry ref-counted or
// locked).
func (c *baseCache) insertLocked(block types.BlockNumber, data []byte, now uint64, pickVictim func() (*types.CacheEntry, bool)) error {
	if _, exists := c.entries[block]; !exists && c.maxEntries > 0 {
		for len(c.entries) >= c.maxEntries {
			victim, ok := pickVictim()
			if !ok {
				return vexerrors.New(vexerrors.KindNoSpace, "no evictable entry")
			}
			if victim.State == types.CacheDirty {
				return vexerrors.New(vexerrors.KindCacheDirty, "eviction candidate is dirty; flush required")
			}
			delete(c.entries, victim.Block)
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.entries[block] = &types.CacheEntry{
		Block:      block,
		Data:       cp,
		State:      types.CacheClean,
		LastAccess: now,
	}
	return nil
}

// evictableLocked returns the blocks currently eligible for eviction.
func (c *baseCache) evictableLocked() []*types.CacheEntry {
	var out []*types.CacheEntry
	for _, e := range c.entries {
		if e.CanEvict() {
			out = append(out, e)
		}
	}
	return out
}
