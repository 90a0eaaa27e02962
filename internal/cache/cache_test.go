package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

func TestLRUHitCorrectness(t *testing.T) {
	c := NewLRU(4)
	require.NoError(t, c.Insert(1, []byte("hello"), 10))

	got, ok := c.Get(1, 11)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), got)
}

func TestLRUDirtySafety(t *testing.T) {
	c := NewLRU(4)
	require.NoError(t, c.MarkDirty(1, []byte("a"), 10))
	require.NoError(t, c.MarkDirty(2, []byte("b"), 10))

	flushed := c.FlushDirty()
	require.Len(t, flushed, 2)

	stats := c.Stats()
	require.Equal(t, 0, stats.DirtyCount)
}

func TestLRUDirtyBlocksEviction(t *testing.T) {
	c := NewLRU(1)
	require.NoError(t, c.MarkDirty(1, []byte("a"), 10))

	err := c.Insert(2, []byte("b"), 11)
	require.Error(t, err)
	require.True(t, vexerrors.Is(err, vexerrors.KindCacheDirty))
}

func TestAdaptiveStabilityOnlyAtWindowBoundary(t *testing.T) {
	a := NewAdaptive(8)
	a.monitorWindow = 100

	require.NoError(t, a.Insert(1, []byte("x"), 0))
	for i := 0; i < 50; i++ {
		a.Get(1, uint64(i))
	}
	// Still inside the first monitor window: no switch has been
	// evaluated, so the active strategy is unchanged.
	require.Equal(t, StrategyLRU, a.ActiveStrategy())

	require.NoError(t, a.Insert(2, []byte("y"), 150))
	require.Equal(t, StrategyLRU, a.ActiveStrategy())
}

func TestCacheWriteBackSeedScenario(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 16)
	c := clock.NewFake(time.Unix(0, 0))
	mgr := NewManager(dev, c, 2, WriteBack, 3600)

	blockA := make([]byte, 4096)
	blockB := make([]byte, 4096)
	blockCData := make([]byte, 4096)
	for i := range blockA {
		blockA[i] = 0xAA
	}
	for i := range blockB {
		blockB[i] = 0xBB
	}
	for i := range blockCData {
		blockCData[i] = 0xCC
	}

	require.NoError(t, mgr.WriteBlock(0, blockA))
	require.NoError(t, mgr.WriteBlock(1, blockB))

	err := mgr.WriteBlock(2, blockCData)
	require.Error(t, err)
	require.True(t, vexerrors.Is(err, vexerrors.KindCacheDirty))

	require.NoError(t, mgr.Sync())

	require.NoError(t, mgr.WriteBlock(2, blockCData))

	got, err := mgr.ReadBlock(2)
	require.NoError(t, err)
	require.Equal(t, blockCData, got)
}
