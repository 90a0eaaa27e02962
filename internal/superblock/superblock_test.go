package superblock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

func testLayout() types.Layout {
	return types.Layout{
		BlockSize:      4096,
		TotalBlocks:    1024,
		TotalInodes:    256,
		BlocksPerGroup: 256,
		InodesPerGroup: 64,
		VolumeName:     "vol",
	}
}

func TestSuperblockRoundTrip(t *testing.T) {
	sb, err := Initialize(testLayout())
	require.NoError(t, err)

	buf, err := ToBytes(sb)
	require.NoError(t, err)
	require.Len(t, buf, SerializedSize)

	got, err := FromBytes(buf)
	require.NoError(t, err)
	require.Equal(t, sb, got)
}

func TestSuperblockChecksumRejection(t *testing.T) {
	sb, err := Initialize(testLayout())
	require.NoError(t, err)
	buf, err := ToBytes(sb)
	require.NoError(t, err)

	// Flip a byte outside the checksum field.
	buf[10] ^= 0xFF

	_, err = FromBytes(buf)
	require.Error(t, err)
	require.True(t, vexerrors.Is(err, vexerrors.KindChecksumMismatch))
}

func TestFreeBlockSaturation(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 1024)
	mgr := NewManager(dev, clock.System{})
	require.NoError(t, mgr.CreateFilesystem(testLayout()))

	require.NoError(t, mgr.UpdateFreeBlocks(-2000))
	require.Equal(t, uint64(0), mgr.Superblock().FreeBlocksCount)
}

func TestCreateThenMount(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 1024)
	mgr := NewManager(dev, clock.NewFake(time.Unix(1000, 0)))

	require.NoError(t, mgr.CreateFilesystem(testLayout()))
	require.NoError(t, mgr.Mount())

	stats := mgr.GetStats()
	require.Equal(t, uint64(1024), stats.TotalBlocks)
	require.Equal(t, uint64(1024), stats.FreeBlocks)
	require.Equal(t, float64(0), stats.Utilization)
	require.Equal(t, uint16(1), stats.MountCount)
}

func TestNeedsFsckOnErrorState(t *testing.T) {
	dev := block.NewMemoryDevice(4096, 1024)
	mgr := NewManager(dev, clock.System{})
	require.NoError(t, mgr.CreateFilesystem(testLayout()))
	require.NoError(t, mgr.MarkError())

	mgr2 := NewManager(dev, clock.System{})
	_, err := mgr2.LoadAndValidate()
	require.Error(t, err)
}
