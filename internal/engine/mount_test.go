package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/cache"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/config"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

func testLayout() types.Layout {
	return types.Layout{
		TotalBlocks:    1024,
		TotalInodes:    256,
		BlockSize:      4096,
		BlocksPerGroup: 256,
		InodesPerGroup: 64,
		VolumeName:     "vol",
	}
}

func fillBytes(b byte, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

// TestCreateThenMountSeedScenario implements seed test 1.
func TestCreateThenMountSeedScenario(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 1024)
	m, err := Create(testLayout(), Options{Device: dev, Clock: clock.System{}})
	require.NoError(t, err)

	stats := m.Stats()
	require.Equal(t, uint64(1024), stats.TotalBlocks)
	require.Equal(t, uint64(1024), stats.FreeBlocks)
	require.Equal(t, float64(0), stats.Utilization)
	require.Equal(t, uint16(1), stats.MountCount)
}

// TestCowOnSnapshotSeedScenario implements seed test 2, exercised
// through a mounted engine rather than the CoW package directly.
func TestCowOnSnapshotSeedScenario(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 1024)
	m, err := Create(testLayout(), Options{Device: dev, Clock: clock.System{}})
	require.NoError(t, err)

	inode := types.InodeNumber(5)
	require.NoError(t, m.Cow.AddExtent(inode, 0, []types.BlockNumber{100, 101, 102}, types.CowExtentActive, 1))

	snap, err := m.Cow.CreateSnapshot(inode)
	require.NoError(t, err)

	require.NoError(t, func() error {
		_, err := m.Cow.CowWrite(inode, 1, fillBytes(0xAA, 4096), 2)
		return err
	}())

	snapData, err := m.Cow.CowRead(snap, 1)
	require.NoError(t, err)

	liveData, err := m.Cow.CowRead(inode, 1)
	require.NoError(t, err)
	require.Equal(t, fillBytes(0xAA, 4096), liveData)
	require.NotEqual(t, snapData, liveData)
}

// TestMvccIsolationSeedScenario implements seed test 3, exercised
// through the mount's wired MVCC manager.
func TestMvccIsolationSeedScenario(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 1024)
	m, err := Create(testLayout(), Options{Device: dev, Clock: clock.System{}})
	require.NoError(t, err)

	const block100 = types.BlockNumber(100)
	const tx2 = types.TxID(1002)

	snapBefore := m.Mvcc.CreateSnapshot()
	m.Mvcc.Write(block100, types.TxID(1001), []byte{1, 2, 3})
	snapAfter := m.Mvcc.CreateSnapshot()

	_, err = m.Mvcc.Read(block100, tx2, snapBefore)
	require.Error(t, err)

	got, err := m.Mvcc.Read(block100, tx2, snapAfter)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}

// TestCacheWriteBackSeedScenario implements seed test 4, exercised
// through a write-back mount.
func TestCacheWriteBackSeedScenario(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 1024)
	m, err := Create(testLayout(), Options{
		Device:          dev,
		Clock:           clock.System{},
		CacheMaxEntries: 2,
		CacheWriteMode:  cache.WriteBack,
	})
	require.NoError(t, err)

	require.NoError(t, m.Cache.WriteBlock(10, fillBytes(0xA, 4096)))
	require.NoError(t, m.Cache.WriteBlock(11, fillBytes(0xB, 4096)))

	err = m.Cache.WriteBlock(12, fillBytes(0xC, 4096))
	require.Error(t, err)
	require.True(t, vexerrors.Is(err, vexerrors.KindCacheDirty))

	require.NoError(t, m.Cache.Sync())
	require.NoError(t, m.Cache.WriteBlock(12, fillBytes(0xC, 4096)))
}

// TestGCReclaimsSeedScenario implements seed test 5.
func TestGCReclaimsSeedScenario(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 1200)
	layout := testLayout()
	layout.TotalBlocks = 1200
	m, err := Create(layout, Options{Device: dev, Clock: clock.System{}})
	require.NoError(t, err)

	const n = 100
	blocks := make([]types.BlockNumber, n)
	for i := 0; i < n; i++ {
		b, err := m.Allocator.Allocate()
		require.NoError(t, err)
		blocks[i] = b
	}
	inode := types.InodeNumber(9)
	require.NoError(t, m.Cow.AddExtent(inode, 0, blocks, types.CowExtentActive, 1))

	before := m.Stats().FreeBlocks
	m.Cow.RemoveMapping(inode)

	result, err := m.CollectGarbage()
	require.NoError(t, err)
	require.Equal(t, uint64(n), result.BlocksFreed)
	require.Equal(t, uint64(n)*uint64(m.Superblock.Superblock().BlockSize), result.SpaceFreed)
	require.Equal(t, before+n, m.Stats().FreeBlocks)
}

// TestMountOptionRoundTripSeedScenario implements seed test 6,
// exercised through a mount's runtime configuration handle.
func TestMountOptionRoundTripSeedScenario(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 1024)
	cfg := types.DataJournalingConfig{
		Mode:                types.FullDataJournaling,
		CowEnabled:          true,
		MmapEnabled:         false,
		MaxDataJournalSize:  134217728,
		LargeWriteThreshold: 1048576,
	}
	m, err := Create(testLayout(), Options{
		Device:        dev,
		Clock:         clock.System{},
		JournalConfig: cfg,
		ConfigTarget:  types.PersistRuntimeOnly,
	})
	require.NoError(t, err)

	generated := config.GenerateMountOptions(m.Config.Active())
	parsed, err := config.ParseMountOptions(generated)
	require.NoError(t, err)
	require.Equal(t, cfg, parsed)
}
