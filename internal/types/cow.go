package types

// CowBlockFlags is a bitset describing a CowBlockRef's sharing state.
type CowBlockFlags uint8

const (
	CowBlockOriginal CowBlockFlags = 1 << iota
	CowBlockCopied
	CowBlockShared
	CowBlockSnapshot
	CowBlockDirty
	CowBlockCompressed
)

// CowBlockRef tracks one logical block's current physical location and
// sharing state within a CowMapping.
type CowBlockRef struct {
	OriginalBlock BlockNumber
	CurrentBlock  BlockNumber
	RefCount      uint32
	Generation    uint64
	Flags         CowBlockFlags
}

// IsCopied reports whether the block has diverged from its original
// physical location.
func (r *CowBlockRef) IsCopied() bool { return r.OriginalBlock != r.CurrentBlock }

// IsShared reports whether more than one logical reference points at
// the current physical block.
func (r *CowBlockRef) IsShared() bool { return r.RefCount > 1 }

// NeedsCow reports whether a write through this reference must
// allocate a fresh physical block before mutating in place.
func (r *CowBlockRef) NeedsCow() bool {
	return r.IsShared() || r.Flags&CowBlockSnapshot != 0
}

// CowExtentFlags is a bitset of per-extent attributes.
type CowExtentFlags uint8

const (
	CowExtentActive CowExtentFlags = 1 << iota
	CowExtentSnapshot
	CowExtentCompressed
	CowExtentEncrypted
	CowExtentVectorData
)

// CowExtent is a contiguous run of logical blocks holding BlockCount
// CowBlockRefs, one per logical block starting at LogicalStart.
//
// Blocks is a slice of pointers, not values: when a snapshot is taken
// the snapshot's extent and the live extent alias the same CowBlockRef
// for every block that has not yet diverged. A write that triggers CoW
// replaces the live extent's pointer with a freshly allocated,
// exclusively-owned CowBlockRef and decrements the shared one's
// RefCount, leaving the snapshot's pointer (and the data it addresses)
// untouched.
type CowExtent struct {
	LogicalStart uint64
	BlockCount   uint64
	Blocks       []*CowBlockRef
	CreatedAt    uint64
	ModifiedAt   uint64
	Flags        CowExtentFlags
}

// End returns the exclusive upper bound of the extent's logical range.
func (e *CowExtent) End() uint64 { return e.LogicalStart + e.BlockCount }

// Overlaps reports whether e and other occupy any common logical
// offset.
func (e *CowExtent) Overlaps(other *CowExtent) bool {
	return e.LogicalStart < other.End() && other.LogicalStart < e.End()
}

// CowMappingFlags is a bitset of per-mapping attributes.
type CowMappingFlags uint8

const (
	CowMappingSnapshot CowMappingFlags = 1 << iota
	CowMappingReadOnly
)

// CowMapping is the per-inode ordered collection of extents defining an
// inode's logical-to-physical layout, optionally chained to a snapshot
// parent by generation id.
type CowMapping struct {
	Inode            InodeNumber
	Extents          []*CowExtent
	LogicalSize      uint64
	Generation       uint64
	Flags            CowMappingFlags
	RefCount         uint32
	ParentGeneration uint64
	HasParent        bool
}
