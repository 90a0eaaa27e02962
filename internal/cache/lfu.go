package cache

import "github.com/vexfs-project/vexfs-core/internal/types"

// LFU evicts the entry with the smallest AccessCount among evictable
// entries.
type LFU struct{ base baseCache }

// NewLFU constructs an LFU cache admitting up to maxEntries resident
// blocks.
func NewLFU(maxEntries int) *LFU { return &LFU{base: newBaseCache(maxEntries)} }

func (c *LFU) Get(block types.BlockNumber, now uint64) ([]byte, bool) {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.getLocked(block, now)
}

func lfuVictim(candidates []*types.CacheEntry) (*types.CacheEntry, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	victim := candidates[0]
	for _, e := range candidates[1:] {
		if e.AccessCount < victim.AccessCount {
			victim = e
		}
	}
	return victim, true
}

func (c *LFU) Insert(block types.BlockNumber, data []byte, now uint64) error {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.insertLocked(block, data, now, func() (*types.CacheEntry, bool) {
		return lfuVictim(c.base.evictableLocked())
	})
}

func (c *LFU) Remove(block types.BlockNumber) (*types.CacheEntry, bool) {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.removeLocked(block)
}

func (c *LFU) FlushDirty() []WriteBack {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.flushDirtyLocked()
}

func (c *LFU) Stats() types.CacheStats {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	return c.base.statsLocked()
}

// MarkDirty transitions block to Dirty, inserting it first if absent.
func (c *LFU) MarkDirty(block types.BlockNumber, data []byte, now uint64) error {
	c.base.mu.Lock()
	defer c.base.mu.Unlock()
	e, ok := c.base.entries[block]
	if !ok {
		if err := c.base.insertLocked(block, data, now, func() (*types.CacheEntry, bool) {
			return lfuVictim(c.base.evictableLocked())
		}); err != nil {
			return err
		}
		e = c.base.entries[block]
	}
	e.MarkDirty(now)
	return nil
}
