package types

// BlockType classifies a tracked block for GC accounting purposes.
type BlockType int

const (
	BlockTypeFileData BlockType = iota
	BlockTypeVectorData
	BlockTypeMetadata
	BlockTypeSnapshotData
)

// BlockRefInfo is the GC's per-block reference tracking record.
type BlockRefInfo struct {
	RefCount   uint32
	LastAccess uint64
	BlockType  BlockType
	Inode      InodeNumber
}

// CleanupType enumerates the kinds of work the incremental collector
// can queue.
type CleanupType int

const (
	CleanupFreeBlock CleanupType = iota
	CleanupCompactRegion
	CleanupOptimizeMapping
)

// priority ranks CleanupType for the priority-ordered drain:
// lower values are drained first.
func (c CleanupType) priority() int {
	switch c {
	case CleanupFreeBlock:
		return 0
	case CleanupCompactRegion:
		return 1
	case CleanupOptimizeMapping:
		return 2
	default:
		return 3
	}
}

// Priority exposes the drain-order rank for a CleanupOperation.
func (c CleanupType) Priority() int { return c.priority() }

// CleanupOperation is one entry in the incremental-collection queue.
type CleanupOperation struct {
	Type  CleanupType
	Block BlockNumber
	Inode InodeNumber
}

// GcConfig tunes both full and incremental collection passes.
type GcConfig struct {
	EnableCompaction     bool
	MaxIncrementalBlocks int
	FreeSpaceThreshold   float64
	EnableBackgroundGC   bool
	GCIntervalSeconds    int
}

// DefaultGcConfig mirrors the reference implementation's defaults.
func DefaultGcConfig() GcConfig {
	return GcConfig{
		EnableCompaction:     true,
		MaxIncrementalBlocks: 1000,
		FreeSpaceThreshold:   0.2,
		EnableBackgroundGC:   true,
		GCIntervalSeconds:    300,
	}
}

// GcResult summarizes one full collection pass.
type GcResult struct {
	BlocksFreed       uint64
	SpaceFreed        uint64
	SnapshotsDeleted  uint64
	MappingsOptimized uint64
	Errors            uint64
}

// GcStats are cumulative, observable GC statistics.
type GcStats struct {
	TotalBlocksFreed   uint64
	TotalSpaceFreed    uint64
	CollectionsRun     uint64
	TotalErrors        uint64
	FragmentationLevel float64
}

// SpaceEfficiency reports 100 minus the current fragmentation level, a
// coarse health indicator for the GC dashboard.
func (s GcStats) SpaceEfficiency() float64 { return 100 - s.FragmentationLevel }
