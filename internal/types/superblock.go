package types

// Superblock magic, version and feature-flag constants. Naming mirrors
// the reference implementation's VEXFS_* constants, translated into Go's
// exported-identifier convention.
const (
	SuperblockMagic = uint64(0x56455846530A0000) // "VEXFS\n" tag, zero-padded

	VersionMajor = uint16(1)
	VersionMinor = uint16(0)

	DefaultInodeSize       = uint16(256)
	DefaultMaxMountCount   = uint16(20)
	DefaultMaxJournalSize  = uint32(1 << 30) // 1 GiB
	MinJournalSize         = uint32(1 << 20) // 1 MiB
	DefaultJournalBlocks   = uint32(1024)
	VectorMagic            = uint32(0x56455856) // "VEXV"
	VectorVersion          = uint16(1)
	SuperblockReservedWord = 126
)

// Filesystem state (s_state): the VALID_FS <-> ERROR_FS state machine.
const (
	StateValid uint16 = 1
	StateError uint16 = 2
)

// Error-behavior policy (s_errors), observed by the mount layer only.
const (
	ErrorsContinue   uint16 = 1
	ErrorsRemountRO  uint16 = 2
	ErrorsPanic      uint16 = 3
)

// Compatible feature flags: unknown bits are safe to ignore.
const (
	FeatureCompatJournal   uint32 = 1 << 0
	FeatureCompatDirIndex  uint32 = 1 << 1
	FeatureCompatResizeIno uint32 = 1 << 2
)

// Incompatible feature flags: an unknown bit here MUST refuse mount.
const (
	FeatureIncompatFiletype    uint32 = 1 << 0
	FeatureIncompatExtents     uint32 = 1 << 1
	FeatureIncompatCompression uint32 = 1 << 2
	FeatureIncompat64Bit       uint32 = 1 << 3
)

// KnownIncompatMask is the OR of every incompat bit this implementation
// understands; any bit outside this mask in a loaded superblock refuses
// mount per the feature-flag design note.
const KnownIncompatMask = FeatureIncompatFiletype | FeatureIncompatExtents |
	FeatureIncompatCompression | FeatureIncompat64Bit

// Read-only-compatible feature flags: an unknown bit here forces a
// read-only mount rather than refusing it outright.
const (
	FeatureROCompatSparseSuper uint32 = 1 << 0
	FeatureROCompatLargeFile   uint32 = 1 << 1
	FeatureROCompatBtreeDir    uint32 = 1 << 2
)

// KnownROCompatMask is the OR of every ro_compat bit this implementation
// understands.
const KnownROCompatMask = FeatureROCompatSparseSuper | FeatureROCompatLargeFile |
	FeatureROCompatBtreeDir

// Vector index feature bits, stored in VectorFeatures.
const (
	VectorFeatureHNSW uint32 = 1 << 0
)

// VectorDescriptor is the optional vector-index section of the
// superblock: it is treated as an opaque persistent structure whose
// contents the engine hosts but never interprets.
type VectorDescriptor struct {
	Magic      uint32
	Version    uint16
	Dimensions uint16
	Algorithm  uint8
	Metric     uint8
	Params     [4]uint16
	IndexBlock uint64
	IndexBlocks uint32
	VectorCount uint64
	Features    uint32
}

// Superblock is the canonical, block-0 filesystem metadata record. Field
// order matches the on-disk byte layout in the external-interfaces
// contract exactly, so ToBytes/FromBytes can serialize it without
// padding surprises.
type Superblock struct {
	Magic             uint64
	BlocksCount       uint64
	FreeBlocksCount   uint64
	InodesCount       uint32
	FreeInodesCount   uint32
	BlockSize         uint32
	InodeSize         uint16
	VersionMajor      uint16
	VersionMinor      uint16
	MkfsTime          uint64
	MountTime         uint64
	Wtime             uint64
	MountCount        uint16
	MaxMountCount     uint16
	State             uint16
	Errors            uint16
	FeatureCompat     uint32
	FeatureIncompat   uint32
	FeatureROCompat   uint32
	UUID              [16]byte
	VolumeName        [64]byte
	FirstDataBlock    uint64
	BlocksPerGroup    uint32
	InodesPerGroup    uint32
	GroupCount        uint32
	JournalInum       uint32
	JournalBlocks     uint32
	JournalFirstBlock uint64
	Vector            VectorDescriptor
	Checksum          uint32
	Reserved          [SuperblockReservedWord]uint32
}

// Layout describes the mkfs-time parameters Initialize builds a fresh
// Superblock from.
type Layout struct {
	BlockSize      uint32
	TotalBlocks    uint64
	TotalInodes    uint32
	BlocksPerGroup uint32
	InodesPerGroup uint32
	VolumeName     string
}
