package superblock

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Manager owns the canonical superblock and mediates every mutation to
// it, following the lock-ordering rule that the superblock lock is
// acquired outermost of all component locks.
type Manager struct {
	mu       sync.RWMutex
	sb       *types.Superblock
	device   block.Device
	clock    clock.Clock
	log      zerolog.Logger
	mounted  bool
	backupOK bool
}

// NewManager constructs a Manager over dev. Logging defaults to silent
// unless WithLogger is supplied.
func NewManager(dev block.Device, c clock.Clock) *Manager {
	return &Manager{device: dev, clock: c, log: zerolog.Nop()}
}

// WithLogger attaches a logger used to narrate mount lifecycle events.
func (m *Manager) WithLogger(l zerolog.Logger) *Manager {
	m.log = l
	return m
}

// Initialize constructs a fresh superblock from layout, validating
// every bound before returning it.
func Initialize(layout types.Layout) (*types.Superblock, error) {
	if !types.IsPowerOfTwo(layout.BlockSize) || layout.BlockSize < types.MinBlockSize || layout.BlockSize > types.MaxBlockSize {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "block size out of bounds")
	}
	if layout.BlocksPerGroup == 0 || layout.InodesPerGroup == 0 {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "group sizes must be non-zero")
	}
	if layout.TotalBlocks == 0 || layout.TotalInodes == 0 {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "total blocks/inodes must be non-zero")
	}
	groupCount := uint32((layout.TotalBlocks + uint64(layout.BlocksPerGroup) - 1) / uint64(layout.BlocksPerGroup))

	sb := &types.Superblock{
		Magic:           types.SuperblockMagic,
		BlocksCount:     layout.TotalBlocks,
		FreeBlocksCount: layout.TotalBlocks,
		InodesCount:     layout.TotalInodes,
		FreeInodesCount: layout.TotalInodes,
		BlockSize:       layout.BlockSize,
		InodeSize:       types.DefaultInodeSize,
		VersionMajor:    types.VersionMajor,
		VersionMinor:    types.VersionMinor,
		MaxMountCount:   types.DefaultMaxMountCount,
		State:           types.StateValid,
		Errors:          types.ErrorsContinue,
		FeatureCompat:   types.FeatureCompatJournal,
		FeatureIncompat: types.FeatureIncompatExtents | types.FeatureIncompat64Bit,
		BlocksPerGroup:  layout.BlocksPerGroup,
		InodesPerGroup:  layout.InodesPerGroup,
		GroupCount:      groupCount,
		JournalBlocks:   types.DefaultJournalBlocks,
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, vexerrors.Wrap(vexerrors.KindInternal, "generate volume uuid", err)
	}
	copy(sb.UUID[:], id[:])
	if err := setVolumeName(sb, layout.VolumeName); err != nil {
		return nil, err
	}
	return sb, nil
}

func setVolumeName(sb *types.Superblock, name string) error {
	if len(name) > len(sb.VolumeName) {
		return vexerrors.New(vexerrors.KindInvalidArgument, "volume name too long")
	}
	var buf [64]byte
	copy(buf[:], name)
	sb.VolumeName = buf
	return nil
}

// CreateFilesystem performs mkfs: builds a fresh superblock, stamps
// mkfs_time, and writes it to block 0.
func (m *Manager) CreateFilesystem(layout types.Layout) error {
	sb, err := Initialize(layout)
	if err != nil {
		return err
	}
	now := uint64(m.clock.Now().Unix())
	sb.MkfsTime = now
	sb.Wtime = now

	m.mu.Lock()
	m.sb = sb
	m.mu.Unlock()
	return m.sync()
}

// LoadAndValidate reads block 0, deserializes it, and refuses a
// filesystem that is in ERROR_FS state or has exhausted its mount
// count budget.
func (m *Manager) LoadAndValidate() (*types.Superblock, error) {
	raw, err := m.device.ReadBlock(0)
	if err != nil {
		return nil, err
	}
	if uint32(len(raw)) < SerializedSize {
		return nil, vexerrors.New(vexerrors.KindInvalidData, "block 0 too small for superblock")
	}
	sb, err := FromBytes(raw[:SerializedSize])
	if err != nil {
		return nil, err
	}
	if sb.State == types.StateError {
		return nil, vexerrors.New(vexerrors.KindNeedsFsck, "filesystem marked ERROR_FS")
	}
	if sb.MaxMountCount > 0 && sb.MountCount >= sb.MaxMountCount {
		return nil, vexerrors.New(vexerrors.KindNeedsFsck, "mount count budget exhausted")
	}
	m.mu.Lock()
	m.sb = sb
	m.mu.Unlock()
	return sb, nil
}

// Mount increments the mount count and stamps mount time.
func (m *Manager) Mount() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sb == nil {
		return vexerrors.New(vexerrors.KindNotMounted, "no superblock loaded")
	}
	m.sb.MountCount++
	m.sb.MountTime = uint64(m.clock.Now().Unix())
	m.mounted = true
	m.log.Info().Str("volume", string(trimZero(m.sb.VolumeName[:]))).Msg("mounted")
	return m.syncLocked()
}

// Unmount stamps clean state and write time.
func (m *Manager) Unmount() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sb == nil || !m.mounted {
		return vexerrors.New(vexerrors.KindNotMounted, "")
	}
	m.sb.State = types.StateValid
	m.sb.Wtime = uint64(m.clock.Now().Unix())
	m.mounted = false
	m.log.Info().Msg("unmounted")
	return m.syncLocked()
}

// IsMounted reports the manager's current mount state.
func (m *Manager) IsMounted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mounted
}

// SetVolumeName rewrites the volume name, failing if it overflows the
// fixed-size buffer.
func (m *Manager) SetVolumeName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := setVolumeName(m.sb, name); err != nil {
		return err
	}
	return m.syncLocked()
}

// EnableVectors turns on the vector-index subsection; dimensions must
// be at least 1.
func (m *Manager) EnableVectors(dimensions uint16, algorithm, metric uint8) error {
	if dimensions < 1 {
		return vexerrors.New(vexerrors.KindInvalidArgument, "dimensions must be >= 1")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sb.Vector = types.VectorDescriptor{
		Magic:      types.VectorMagic,
		Version:    types.VectorVersion,
		Dimensions: dimensions,
		Algorithm:  algorithm,
		Metric:     metric,
	}
	return m.syncLocked()
}

// DisableVectors clears the vector-index subsection.
func (m *Manager) DisableVectors() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sb.Vector = types.VectorDescriptor{}
	return m.syncLocked()
}

// UpdateFreeBlocks applies delta to the free-block count with
// saturating arithmetic: it never wraps below 0 or above BlocksCount.
func (m *Manager) UpdateFreeBlocks(delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sb.FreeBlocksCount = saturatingAdd(m.sb.FreeBlocksCount, delta, m.sb.BlocksCount)
	return m.syncLocked()
}

// UpdateFreeInodes applies delta to the free-inode count with
// saturating arithmetic.
func (m *Manager) UpdateFreeInodes(delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sb.FreeInodesCount = uint32(saturatingAdd(uint64(m.sb.FreeInodesCount), delta, uint64(m.sb.InodesCount)))
	return m.syncLocked()
}

// UpdateVectorCount applies delta to the vector count with saturating
// arithmetic against no fixed ceiling (vectors are not block-bounded).
func (m *Manager) UpdateVectorCount(delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delta < 0 && uint64(-delta) > m.sb.Vector.VectorCount {
		m.sb.Vector.VectorCount = 0
	} else {
		m.sb.Vector.VectorCount = uint64(int64(m.sb.Vector.VectorCount) + delta)
	}
	return m.syncLocked()
}

func saturatingAdd(current uint64, delta int64, ceiling uint64) uint64 {
	if delta < 0 {
		d := uint64(-delta)
		if d > current {
			return 0
		}
		return current - d
	}
	sum := current + uint64(delta)
	if sum > ceiling {
		return ceiling
	}
	return sum
}

// MarkError transitions the filesystem to ERROR_FS, sticky until an
// explicit fsck clears it.
func (m *Manager) MarkError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sb.State = types.StateError
	return m.syncLocked()
}

// NeedsFsck reports whether the loaded superblock is in ERROR_FS.
func (m *Manager) NeedsFsck() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sb != nil && m.sb.State == types.StateError
}

// Superblock returns the currently loaded superblock. Callers must not
// mutate the returned pointer's fields directly; use the Manager's
// update methods so checksum and wtime stay consistent.
func (m *Manager) Superblock() *types.Superblock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sb
}

// Stats are the read-only diagnostics GetStats reports.
type Stats struct {
	TotalBlocks       uint64
	FreeBlocks        uint64
	Utilization       float64
	TotalInodes       uint32
	FreeInodes        uint32
	InodeUtilization  float64
	MountCount        uint16
	MaxMountCount     uint16
}

// GetStats reports the current utilization and mount-count diagnostics.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{
		TotalBlocks:   m.sb.BlocksCount,
		FreeBlocks:    m.sb.FreeBlocksCount,
		TotalInodes:   m.sb.InodesCount,
		FreeInodes:    m.sb.FreeInodesCount,
		MountCount:    m.sb.MountCount,
		MaxMountCount: m.sb.MaxMountCount,
	}
	if s.TotalBlocks > 0 {
		s.Utilization = 100 * float64(s.TotalBlocks-s.FreeBlocks) / float64(s.TotalBlocks)
	}
	if s.TotalInodes > 0 {
		s.InodeUtilization = 100 * float64(s.TotalInodes-s.FreeInodes) / float64(s.TotalInodes)
	}
	return s
}

// HealthStatus is the set of warning bits ValidateHealth reports.
type HealthStatus struct {
	BlockUtilizationHigh bool
	InodeUtilizationHigh bool
	MountCountHigh       bool
	ErrorState           bool
}

// Healthy reports whether no warning bit is set.
func (h HealthStatus) Healthy() bool {
	return !h.BlockUtilizationHigh && !h.InodeUtilizationHigh && !h.MountCountHigh && !h.ErrorState
}

// ValidateHealth evaluates the superblock's warning thresholds: >90%
// block or inode utilization, mount count at or above 90% of the max,
// or ERROR_FS state.
func (m *Manager) ValidateHealth() HealthStatus {
	stats := m.GetStats()
	m.mu.RLock()
	errState := m.sb.State == types.StateError
	m.mu.RUnlock()
	h := HealthStatus{
		BlockUtilizationHigh: stats.Utilization > 90,
		InodeUtilizationHigh: stats.InodeUtilization > 90,
		ErrorState:           errState,
	}
	if stats.MaxMountCount > 0 {
		h.MountCountHigh = float64(stats.MountCount) >= 0.9*float64(stats.MaxMountCount)
	}
	return h
}

// sync serializes and writes the current superblock to block 0.
func (m *Manager) sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncLocked()
}

// syncLocked assumes mu is already held for writing.
func (m *Manager) syncLocked() error {
	m.sb.Wtime = uint64(m.clock.Now().Unix())
	buf, err := ToBytes(m.sb)
	if err != nil {
		return err
	}
	padded := make([]byte, m.device.BlockSize())
	copy(padded, buf)
	if err := m.device.WriteBlock(0, padded); err != nil {
		m.sb.State = types.StateError
		return err
	}
	return nil
}

// Sync flushes the current in-memory superblock to the device.
func (m *Manager) Sync() error { return m.sync() }

func trimZero(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
