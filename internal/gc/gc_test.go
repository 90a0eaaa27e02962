package gc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/cache"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/cow"
	"github.com/vexfs-project/vexfs-core/internal/types"
)

const reserved = 16

func newTestCollector(t *testing.T) (*Collector, *block.Allocator, *cow.Engine) {
	t.Helper()
	dev := block.NewMemoryDevice(4096, 256)
	alloc := block.NewAllocator(256, reserved)
	cacheMgr := cache.NewManager(dev, clock.System{}, 64, cache.WriteThrough, 3600)
	engine := cow.NewEngine(alloc, cacheMgr, clock.System{}, 1_000_000)
	cfg := types.DefaultGcConfig()
	return NewCollector(alloc, engine, cacheMgr, clock.System{}, reserved, cfg), alloc, engine
}

func TestSweepReclaimsUnreachableBlocks(t *testing.T) {
	c, alloc, engine := newTestCollector(t)
	alloc.MarkUsed(20)
	alloc.MarkUsed(21)
	alloc.MarkUsed(22)
	require.NoError(t, engine.AddExtent(1, 0, []types.BlockNumber{20, 21, 22}, types.CowExtentActive, 1))

	// simulate an orphaned allocation no mapping references
	orphan, err := alloc.Allocate()
	require.NoError(t, err)
	require.NotEqual(t, types.BlockNumber(20), orphan)

	before := alloc.FreeCount()
	result := c.Collect()
	require.GreaterOrEqual(t, result.BlocksFreed, uint64(1))
	require.Greater(t, alloc.FreeCount(), before)
	require.True(t, alloc.IsUsed(20), "blocks referenced by a live mapping must survive the sweep")
}

func TestCleanObsoleteSnapshotsRemovesZeroRefSnapshot(t *testing.T) {
	c, _, engine := newTestCollector(t)
	require.NoError(t, engine.AddExtent(1, 0, []types.BlockNumber{30}, types.CowExtentActive, 1))
	snap, err := engine.CreateSnapshot(1)
	require.NoError(t, err)

	refCount, err := engine.ReleaseSnapshot(snap)
	require.NoError(t, err)
	require.Equal(t, uint32(0), refCount)

	before := len(engine.Arena().All())
	c.Collect()
	after := len(engine.Arena().All())
	require.Less(t, after, before, "the zero-ref snapshot mapping must be removed from the arena")
}

func TestOptimizeMappingsCoalescesAdjacentExtents(t *testing.T) {
	c, _, engine := newTestCollector(t)
	require.NoError(t, engine.AddExtent(1, 0, []types.BlockNumber{40, 41}, types.CowExtentActive, 1))
	require.NoError(t, engine.AddExtent(1, 2, []types.BlockNumber{42, 43}, types.CowExtentActive, 1))

	m := engine.GetMapping(1)
	require.Len(t, m.Extents, 2)

	c.Collect()

	m = engine.GetMapping(1)
	require.Len(t, m.Extents, 1)
	require.Equal(t, uint64(4), m.Extents[0].BlockCount)
}

func TestIncrementalDrainRespectsPriorityOrder(t *testing.T) {
	c, alloc, engine := newTestCollector(t)
	require.NoError(t, engine.AddExtent(1, 0, []types.BlockNumber{50, 51}, types.CowExtentActive, 1))

	orphan, err := alloc.Allocate()
	require.NoError(t, err)

	c.Enqueue(types.CleanupOperation{Type: types.CleanupOptimizeMapping, Inode: 1})
	c.Enqueue(types.CleanupOperation{Type: types.CleanupFreeBlock, Block: orphan})

	processed := c.DrainIncremental(1)
	require.Equal(t, 1, processed)
	require.False(t, alloc.IsUsed(orphan), "FreeBlock must drain before OptimizeMapping despite enqueue order")
}

func TestCompactionConsolidatesFragmentedExtent(t *testing.T) {
	c, alloc, engine := newTestCollector(t)
	// three blocks scattered non-contiguously
	alloc.MarkUsed(60)
	alloc.MarkUsed(100)
	alloc.MarkUsed(150)
	require.NoError(t, engine.AddExtent(1, 0, []types.BlockNumber{60, 100, 150}, types.CowExtentActive, 1))

	m := engine.GetMapping(1)
	ext := m.Extents[0]
	require.False(t, isContiguous(ext))

	c.compactAll()

	m = engine.GetMapping(1)
	ext = m.Extents[0]
	require.True(t, isContiguous(ext))
}
