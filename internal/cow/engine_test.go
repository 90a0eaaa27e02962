package cow

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/cache"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dev := block.NewMemoryDevice(4096, 1024)
	alloc := block.NewAllocator(1024, 200)
	cacheMgr := cache.NewManager(dev, clock.System{}, 64, cache.WriteThrough, 3600)
	return NewEngine(alloc, cacheMgr, clock.System{}, 1_000_000)
}

func fill(b byte) []byte {
	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestReadAfterWrite(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddExtent(1, 0, []types.BlockNumber{300, 301, 302}, types.CowExtentActive, 1))

	_, err := e.CowWrite(1, 1, fill(0xAA), 2)
	require.NoError(t, err)

	got, err := e.CowRead(1, 1)
	require.NoError(t, err)
	require.True(t, bytes.Equal(got, fill(0xAA)))
}

func TestNoOverlap(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddExtent(1, 0, []types.BlockNumber{300, 301, 302}, types.CowExtentActive, 1))

	err := e.AddExtent(1, 2, []types.BlockNumber{400, 401}, types.CowExtentActive, 1)
	require.Error(t, err)
	require.True(t, vexerrors.Is(err, vexerrors.KindInvalidArgument))
}

func TestWriteToUnmappedOffsetFails(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddExtent(1, 0, []types.BlockNumber{300}, types.CowExtentActive, 1))

	_, err := e.CowWrite(1, 5, fill(0x01), 2)
	require.Error(t, err)
	require.True(t, vexerrors.Is(err, vexerrors.KindInvalidArgument))
}

// TestCowOnSnapshotSeedScenario implements seed test 2 from the
// testable-properties set: create inode I with one extent of 3 blocks
// [100,101,102]; snapshot(I); write at logical 1; the snapshot keeps
// seeing the original block 101 contents while the live inode sees the
// new data and a different current_block.
func TestCowOnSnapshotSeedScenario(t *testing.T) {
	e := newTestEngine(t)
	inode := types.InodeNumber(42)
	require.NoError(t, e.AddExtent(inode, 0, []types.BlockNumber{100, 101, 102}, types.CowExtentActive, 1))

	original, err := e.CowRead(inode, 1)
	require.NoError(t, err)

	snapInode, err := e.CreateSnapshot(inode)
	require.NoError(t, err)

	_, err = e.CowWrite(inode, 1, fill(0xAA), 2)
	require.NoError(t, err)

	snapData, err := e.CowRead(snapInode, 1)
	require.NoError(t, err)
	require.Equal(t, original, snapData)

	liveData, err := e.CowRead(inode, 1)
	require.NoError(t, err)
	require.Equal(t, fill(0xAA), liveData)

	liveMapping := e.GetMapping(inode)
	ext := findExtent(liveMapping, 1)
	require.NotEqual(t, types.BlockNumber(101), ext.Blocks[1].CurrentBlock)
}

func TestSnapshotIsImmutable(t *testing.T) {
	e := newTestEngine(t)
	inode := types.InodeNumber(7)
	require.NoError(t, e.AddExtent(inode, 0, []types.BlockNumber{10}, types.CowExtentActive, 1))

	snapInode, err := e.CreateSnapshot(inode)
	require.NoError(t, err)

	_, err = e.CowWrite(snapInode, 0, fill(0xFF), 2)
	require.Error(t, err)
	require.True(t, vexerrors.Is(err, vexerrors.KindInvalidOperation))
}
