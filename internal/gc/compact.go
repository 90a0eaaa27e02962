package gc

import (
	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/cache"
	"github.com/vexfs-project/vexfs-core/internal/types"
)

// compactAll walks every live mapping's extents and consolidates the
// ones whose physical blocks are scattered, returning the number of
// blocks relocated.
func (c *Collector) compactAll() uint64 {
	var moved uint64
	for _, m := range c.engine.Arena().All() {
		if m.Flags&types.CowMappingSnapshot != 0 {
			continue // snapshots are read-only views, never compaction targets
		}
		for _, ext := range m.Extents {
			if compactExtent(ext, c.allocator, c.cacheMgr) {
				moved += ext.BlockCount
			}
		}
	}
	return moved
}

// isContiguous reports whether ext's physical blocks already form one
// ascending run, in which case compaction has nothing to do.
func isContiguous(ext *types.CowExtent) bool {
	for i := 1; i < len(ext.Blocks); i++ {
		if ext.Blocks[i].CurrentBlock != ext.Blocks[i-1].CurrentBlock+1 {
			return false
		}
	}
	return true
}

// compactExtent relocates a fragmented extent's blocks into the lowest
// free run large enough to hold them, in place: it copies each block's
// data into the new run, rewrites the extent's block references, and
// frees the vacated originals. Shared blocks (still referenced by a
// snapshot) are left untouched since moving them would require
// rewriting every alias, and a block with no sufficiently large free
// run available is left as-is. Either way compaction aborts for that
// extent without partial side effects.
func compactExtent(ext *types.CowExtent, allocator *block.Allocator, cacheMgr *cache.Manager) bool {
	if len(ext.Blocks) == 0 || isContiguous(ext) {
		return false
	}
	for _, ref := range ext.Blocks {
		if ref.IsShared() {
			return false
		}
	}

	run, ok := findFreeRun(allocator, ext.BlockCount)
	if !ok {
		return false
	}

	data := make([][]byte, len(ext.Blocks))
	for i, ref := range ext.Blocks {
		d, err := cacheMgr.ReadBlock(ref.CurrentBlock)
		if err != nil {
			return false
		}
		data[i] = d
	}

	// Stage every write into the new run before touching ext.Blocks at
	// all: a mid-loop failure must roll back the destinations it had
	// already claimed and leave the extent's references untouched,
	// never a half-migrated extent.
	dsts := make([]types.BlockNumber, len(ext.Blocks))
	for i := range ext.Blocks {
		dsts[i] = run + types.BlockNumber(i)
	}
	for i, d := range data {
		allocator.MarkUsed(dsts[i])
		if err := cacheMgr.WriteBlock(dsts[i], d); err != nil {
			for j := 0; j <= i; j++ {
				_ = allocator.Free(dsts[j])
			}
			return false
		}
	}

	old := make([]types.BlockNumber, len(ext.Blocks))
	for i, ref := range ext.Blocks {
		old[i] = ref.CurrentBlock
		ref.CurrentBlock = dsts[i]
	}
	for _, b := range old {
		_ = allocator.Free(b)
	}
	return true
}

// findFreeRun returns the lowest-numbered contiguous run of length
// blocks, scanning the allocator's full range.
func findFreeRun(a *block.Allocator, length uint64) (types.BlockNumber, bool) {
	total := a.Total()
	if length == 0 {
		return 0, false
	}
	run := uint64(0)
	start := uint64(0)
	for i := uint64(0); i < total; i++ {
		if !a.IsUsed(types.BlockNumber(i)) {
			if run == 0 {
				start = i
			}
			run++
			if run == length {
				return types.BlockNumber(start), true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}
