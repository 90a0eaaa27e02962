package journal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/types"
)

func newTestManager(t *testing.T, mode types.DataJournalingMode) (*Manager, block.Device) {
	t.Helper()
	dev := block.NewMemoryDevice(4096, 64)
	return NewManager(dev, clock.System{}, 0, 64, mode), dev
}

func TestCommittedTransactionReplays(t *testing.T) {
	m, _ := newTestManager(t, types.OrderedData)

	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, m.Append(tx, types.RecordMetadata, []byte("inode update")))
	require.NoError(t, m.Commit(tx))

	result, err := m.Replay()
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.Equal(t, []byte("inode update"), result.Applied[0].Payload)
	require.Equal(t, 0, result.Discarded)
}

func TestUncommittedTransactionIsDiscarded(t *testing.T) {
	m, _ := newTestManager(t, types.OrderedData)

	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, m.Append(tx, types.RecordMetadata, []byte("half done")))
	// no Commit: simulates a crash mid-transaction

	result, err := m.Replay()
	require.NoError(t, err)
	require.Empty(t, result.Applied)
	require.Equal(t, 1, result.Discarded)
}

func TestAbortedTransactionIsDiscarded(t *testing.T) {
	m, _ := newTestManager(t, types.OrderedData)

	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, m.Append(tx, types.RecordMetadata, []byte("rolled back")))
	require.NoError(t, m.Abort(tx))

	result, err := m.Replay()
	require.NoError(t, err)
	require.Empty(t, result.Applied)
	require.Equal(t, 1, result.Discarded)
}

func TestOrderedDataModeDoesNotJournalDataRecords(t *testing.T) {
	m, _ := newTestManager(t, types.OrderedData)

	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, m.Append(tx, types.RecordData, []byte("payload bytes")))
	require.NoError(t, m.Commit(tx))

	result, err := m.Replay()
	require.NoError(t, err)
	require.Empty(t, result.Applied, "ordered-data mode journals metadata only")
}

func TestFullDataJournalingModeJournalsDataRecords(t *testing.T) {
	m, _ := newTestManager(t, types.FullDataJournaling)

	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, m.Append(tx, types.RecordData, []byte("payload bytes")))
	require.NoError(t, m.Commit(tx))

	result, err := m.Replay()
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.Equal(t, []byte("payload bytes"), result.Applied[0].Payload)
}

func TestReplayResetsWriteCursor(t *testing.T) {
	m, _ := newTestManager(t, types.OrderedData)
	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, m.Commit(tx))

	_, err = m.Replay()
	require.NoError(t, err)

	tx2, err := m.Begin()
	require.NoError(t, err)
	require.Equal(t, uint32(1), m.writePos, "second begin after replay should land at block 0, leaving the cursor at 1, not continue past the prior cursor")
	require.NoError(t, m.Commit(tx2))
}

func TestChecksumMismatchIsDetected(t *testing.T) {
	m, dev := newTestManager(t, types.OrderedData)
	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, m.Append(tx, types.RecordMetadata, []byte("data")))
	require.NoError(t, m.Commit(tx))

	corrupt, err := dev.ReadBlock(1)
	require.NoError(t, err)
	corrupt[recordHeaderSize] ^= 0xFF
	require.NoError(t, dev.WriteBlock(1, corrupt))

	_, err = m.Replay()
	require.Error(t, err)
}
