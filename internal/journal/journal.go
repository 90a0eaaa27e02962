// Package journal implements the write-ahead log: a bounded circular
// region of the block device that records metadata (and, depending on
// the active data-journaling mode, data) changes before they land in
// their final location, so a crash mid-write can be undone or replayed
// on the next mount.
package journal

import (
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Manager is the sole writer and reader of a mount's journal region. It
// owns the circular write cursor and the transaction id counter; per
// the design note moving every piece of mutable global state onto an
// explicit per-mount handle, neither is a package-level variable.
type Manager struct {
	mu         sync.Mutex
	dev        block.Device
	clock      clock.Clock
	log        zerolog.Logger
	firstBlock uint64
	numBlocks  uint32
	mode       types.DataJournalingMode
	nextTxID   atomic.Uint64
	writePos   uint32
}

// NewManager constructs a journal Manager over [firstBlock,
// firstBlock+numBlocks) of dev.
func NewManager(dev block.Device, c clock.Clock, firstBlock uint64, numBlocks uint32, mode types.DataJournalingMode) *Manager {
	m := &Manager{
		dev:        dev,
		clock:      c,
		log:        zerolog.Nop(),
		firstBlock: firstBlock,
		numBlocks:  numBlocks,
		mode:       mode,
	}
	m.nextTxID.Store(1)
	return m
}

// WithLogger attaches a logger used to narrate commits and aborts.
func (m *Manager) WithLogger(l zerolog.Logger) *Manager {
	m.log = l
	return m
}

// SetMode switches the active data-journaling mode for subsequent
// transactions.
func (m *Manager) SetMode(mode types.DataJournalingMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// Mode reports the active data-journaling mode.
func (m *Manager) Mode() types.DataJournalingMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Manager) writeRecordLocked(rec types.JournalRecord) error {
	blockSize := m.dev.BlockSize()
	buf, err := encodeRecord(blockSize, rec)
	if err != nil {
		return err
	}
	abs := types.BlockNumber(m.firstBlock + uint64(m.writePos))
	if err := m.dev.WriteBlock(abs, buf); err != nil {
		return err
	}
	m.writePos = (m.writePos + 1) % m.numBlocks
	return nil
}

// Begin allocates a fresh transaction id and records its start.
func (m *Manager) Begin() (types.TxID, error) {
	id := types.TxID(m.nextTxID.Add(1))

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeRecordLocked(types.JournalRecord{Kind: types.RecordBegin, TxID: uint64(id)}); err != nil {
		return 0, err
	}
	return id, nil
}

// Append records one change under an open transaction. Data records
// are only written to the journal in FullDataJournaling mode; in
// MetadataOnly and OrderedData modes the caller writes data blocks to
// their final location directly and Append is a no-op for
// types.RecordData, relying on commit ordering instead of journaling.
func (m *Manager) Append(tx types.TxID, kind types.RecordKind, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == types.RecordData && m.mode != types.FullDataJournaling {
		return nil
	}
	return m.writeRecordLocked(types.JournalRecord{Kind: kind, TxID: uint64(tx), Payload: payload})
}

// Commit finalizes tx, making its prior Append calls durable on
// replay.
func (m *Manager) Commit(tx types.TxID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeRecordLocked(types.JournalRecord{Kind: types.RecordCommit, TxID: uint64(tx)}); err != nil {
		return err
	}
	m.log.Debug().Uint64("tx", uint64(tx)).Msg("transaction committed")
	return nil
}

// Abort records that tx's prior Append calls must be discarded on
// replay.
func (m *Manager) Abort(tx types.TxID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeRecordLocked(types.JournalRecord{Kind: types.RecordAbort, TxID: uint64(tx)}); err != nil {
		return err
	}
	m.log.Debug().Uint64("tx", uint64(tx)).Msg("transaction aborted")
	return nil
}

// ReplayResult groups a mount-time journal scan's findings.
type ReplayResult struct {
	// Applied holds, in log order, the metadata/data records of every
	// transaction that reached a Commit record.
	Applied []types.JournalRecord
	// Discarded counts transactions with no terminating Commit record
	// (either an explicit Abort or a crash mid-transaction).
	Discarded int
}

// Replay scans the entire journal region once and classifies every
// transaction it finds as committed or incomplete. Committed
// transactions' records are returned in log order for the caller to
// re-apply to their final locations; incomplete ones are silently
// discarded, matching the contract that only committed work survives a
// crash. After a successful scan the write cursor is reset to the
// region's first block; the scanned blocks themselves are not cleared.
func (m *Manager) Replay() (ReplayResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type txRecords struct {
		records   []types.JournalRecord
		committed bool
		aborted   bool
	}
	byTx := make(map[uint64]*txRecords)
	order := make([]uint64, 0)

	for i := uint32(0); i < m.numBlocks; i++ {
		abs := types.BlockNumber(m.firstBlock + uint64(i))
		buf, err := m.dev.ReadBlock(abs)
		if err != nil {
			return ReplayResult{}, vexerrors.Wrap(vexerrors.KindInternal, "read journal block", err)
		}
		rec, ok, err := decodeRecord(buf)
		if err != nil {
			return ReplayResult{}, err
		}
		if !ok {
			continue
		}
		t, seen := byTx[rec.TxID]
		if !seen {
			t = &txRecords{}
			byTx[rec.TxID] = t
			order = append(order, rec.TxID)
		}
		switch rec.Kind {
		case types.RecordCommit:
			t.committed = true
		case types.RecordAbort:
			t.aborted = true
		case types.RecordBegin:
			// no payload to carry forward
		default:
			t.records = append(t.records, rec)
		}
	}

	result := ReplayResult{}
	for _, id := range order {
		t := byTx[id]
		if t.committed && !t.aborted {
			result.Applied = append(result.Applied, t.records...)
		} else {
			result.Discarded++
		}
	}

	m.writePos = 0
	return result, nil
}
