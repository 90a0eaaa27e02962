package cache

import "github.com/vexfs-project/vexfs-core/internal/types"

// LRU evicts the entry with the oldest LastAccess among evictable
// entries.
type LRU struct{ base baseCache }

// NewLRU constructs an LRU cache admitting up to maxEntries resident
// blocks.
func NewLRU(maxEntries int) *LRU { return &LRU{base: newBaseCache(maxEntries)} }

func (c *LRU) Get(block types.BlockNumber, now uint64) ([]byte, bool) {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.getLocked(block, now)
}

func lruVictim(candidates []*types.CacheEntry) (*types.CacheEntry, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	victim := candidates[0]
	for _, e := range candidates[1:] {
		if e.LastAccess < victim.LastAccess {
			victim = e
		}
	}
	return victim, true
}

func (c *LRU) Insert(block types.BlockNumber, data []byte, now uint64) error {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.insertLocked(block, data, now, func() (*types.CacheEntry, bool) {
		return lruVictim(c.base.evictableLocked())
	})
}

func (c *LRU) Remove(block types.BlockNumber) (*types.CacheEntry, bool) {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.removeLocked(block)
}

func (c *LRU) FlushDirty() []WriteBack {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.flushDirtyLocked()
}

func (c *LRU) Stats() types.CacheStats {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.statsLocked()
}

// MarkDirty transitions block to Dirty, inserting it first if absent.
func (c *LRU) MarkDirty(block types.BlockNumber, data []byte, now uint64) error {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	e, ok := c.base.entries[block]
	if !ok {
		if err := c.base.insertLocked(block, data, now, func() (*types.CacheEntry, bool) {
			return lruVictim(c.base.evictableLocked())
		}); err != nil {
			return err
		}
		e = c.base.entries[block]
	}
	e.MarkDirty(now)
	return nil
}
