package types

// TxID identifies the transaction that created or deleted a version.
type TxID uint64

// VersionID uniquely and monotonically identifies a version chain
// entry.
type VersionID uint64

// VersionFlags is a bitset of per-entry attributes.
type VersionFlags uint8

const (
	VersionDeleted VersionFlags = 1 << iota
)

// VersionChainEntry is one historical value of a single block.
type VersionChainEntry struct {
	VersionID VersionID
	CreatedBy TxID
	DeletedBy TxID
	CreatedAt uint64
	DeletedAt uint64
	Data      []byte
	Prev      *VersionChainEntry
	Next      *VersionChainEntry
	Flags     VersionFlags
}

// IsVisibleTo implements the MVCC visibility predicate: a version is
// visible to a transaction with snapshot timestamp snapshotTS iff it was
// created by tx, or it was committed at or before the snapshot and has
// not been deleted by that point.
func (e *VersionChainEntry) IsVisibleTo(tx TxID, snapshotTS uint64) bool {
	if e.CreatedBy == tx {
		return true
	}
	if e.CreatedAt > snapshotTS {
		return false
	}
	if e.DeletedBy == 0 {
		return true
	}
	return e.DeletedAt > snapshotTS
}

// VersionChain is the newest-first list of versions recorded for a
// single block.
type VersionChain struct {
	Block BlockNumber
	Head  *VersionChainEntry
	Tail  *VersionChainEntry
	Count int
}
