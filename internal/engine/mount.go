// Package engine wires every storage component into a single mount
// context: the superblock manager, block cache, CoW engine, MVCC
// manager, journal, garbage collector, and runtime configuration handle
// a real mount would hold together, in the lock order superblock → CoW
// registry → mapping → MVCC chain → cache entry.
package engine

import (
	"github.com/rs/zerolog"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/cache"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/config"
	"github.com/vexfs-project/vexfs-core/internal/cow"
	"github.com/vexfs-project/vexfs-core/internal/gc"
	"github.com/vexfs-project/vexfs-core/internal/journal"
	"github.com/vexfs-project/vexfs-core/internal/mvcc"
	"github.com/vexfs-project/vexfs-core/internal/superblock"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Options configures a fresh Mount. Zero values fall back to sane
// defaults for every field except Device, which is required.
type Options struct {
	Device             block.Device
	Clock              clock.Clock
	CacheMaxEntries    int
	CacheSyncInterval  uint64
	CacheWriteMode     cache.WriteMode
	JournalConfig      types.DataJournalingConfig
	ConfigTarget       config.Target
	GCConfig           types.GcConfig
	SnapshotInodeStart types.InodeNumber
	Logger             zerolog.Logger
}

// Mount is a single open filesystem instance: every component a mount
// needs, threaded through one handle so no piece of mutable state is a
// package-level global other than the MVCC manager's atomics, which
// live on the *mvcc.Manager this Mount owns exclusively.
type Mount struct {
	Device     block.Device
	Clock      clock.Clock
	Superblock *superblock.Manager
	Allocator  *block.Allocator
	Cache      *cache.Manager
	Cow        *cow.Engine
	Mvcc       *mvcc.Manager
	Journal    *journal.Manager
	Gc         *gc.Collector
	Config     *config.RuntimeConfig
	log        zerolog.Logger
	readOnly   bool
}

func resolveOptions(opt Options) Options {
	if opt.Clock == nil {
		opt.Clock = clock.System{}
	}
	if opt.CacheMaxEntries == 0 {
		opt.CacheMaxEntries = 4096
	}
	if opt.CacheSyncInterval == 0 {
		opt.CacheSyncInterval = 30
	}
	if opt.JournalConfig == (types.DataJournalingConfig{}) {
		opt.JournalConfig = types.DefaultDataJournalingConfig()
	}
	if opt.GCConfig == (types.GcConfig{}) {
		opt.GCConfig = types.DefaultGcConfig()
	}
	if opt.SnapshotInodeStart == 0 {
		opt.SnapshotInodeStart = 1 << 32
	}
	return opt
}

// Create formats a fresh filesystem on opt.Device and returns a mounted
// Mount over it, implementing the create-then-mount seed scenario.
func Create(layout types.Layout, opt Options) (*Mount, error) {
	opt = resolveOptions(opt)
	if opt.Device == nil {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "device is required")
	}

	sbMgr := superblock.NewManager(opt.Device, opt.Clock).WithLogger(opt.Logger)
	if err := sbMgr.CreateFilesystem(layout); err != nil {
		return nil, err
	}
	if err := sbMgr.Mount(); err != nil {
		return nil, err
	}
	return assemble(sbMgr, opt, false)
}

// Open loads an existing filesystem from opt.Device, replays its
// journal, and returns a ready Mount. If the superblock carries an
// unrecognized ro_compat bit, the mount is forced read-only and every
// mutating Mount method returns InvalidOperation.
func Open(opt Options) (*Mount, error) {
	opt = resolveOptions(opt)
	if opt.Device == nil {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "device is required")
	}

	sbMgr := superblock.NewManager(opt.Device, opt.Clock).WithLogger(opt.Logger)
	sb, err := sbMgr.LoadAndValidate()
	if err != nil {
		return nil, err
	}
	readOnly := superblock.ReadOnlyRequired(sb)
	if err := sbMgr.Mount(); err != nil {
		return nil, err
	}
	m, err := assemble(sbMgr, opt, readOnly)
	if err != nil {
		return nil, err
	}

	journalBlocks := sb.JournalBlocks
	if journalBlocks == 0 {
		return m, nil
	}
	result, err := m.Journal.Replay()
	if err != nil {
		return nil, err
	}
	m.log.Info().
		Int("applied", len(result.Applied)).
		Int("discarded", result.Discarded).
		Msg("journal replay complete")
	return m, nil
}

func assemble(sbMgr *superblock.Manager, opt Options, readOnly bool) (*Mount, error) {
	sb := sbMgr.Superblock()
	reservedBlocks := sb.FirstDataBlock
	if reservedBlocks == 0 {
		reservedBlocks = 1 + uint64(sb.JournalBlocks)
	}

	allocator := block.NewAllocator(sb.BlocksCount, reservedBlocks)
	cacheMgr := cache.NewManager(opt.Device, opt.Clock, opt.CacheMaxEntries, opt.CacheWriteMode, opt.CacheSyncInterval)
	cowEngine := cow.NewEngine(allocator, cacheMgr, opt.Clock, opt.SnapshotInodeStart).WithLogger(opt.Logger)
	mvccMgr := mvcc.NewManager()
	journalMgr := journal.NewManager(opt.Device, opt.Clock, 1, sb.JournalBlocks, opt.JournalConfig.Mode).WithLogger(opt.Logger)
	gcCollector := gc.NewCollector(allocator, cowEngine, cacheMgr, opt.Clock, reservedBlocks, opt.GCConfig).WithLogger(opt.Logger)

	runtimeCfg, err := config.NewRuntimeConfig(opt.JournalConfig, opt.ConfigTarget)
	if err != nil {
		return nil, err
	}

	return &Mount{
		Device:     opt.Device,
		Clock:      opt.Clock,
		Superblock: sbMgr,
		Allocator:  allocator,
		Cache:      cacheMgr,
		Cow:        cowEngine,
		Mvcc:       mvccMgr,
		Journal:    journalMgr,
		Gc:         gcCollector,
		Config:     runtimeCfg,
		log:        opt.Logger,
		readOnly:   readOnly,
	}, nil
}

// ReadOnly reports whether this mount was forced read-only by an
// unrecognized ro_compat feature bit.
func (m *Mount) ReadOnly() bool { return m.readOnly }

func (m *Mount) requireWritable() error {
	if m.readOnly {
		return vexerrors.New(vexerrors.KindInvalidOperation, "filesystem is mounted read-only")
	}
	return nil
}

// Close flushes the cache and stamps a clean unmount.
func (m *Mount) Close() error {
	if err := m.Cache.Sync(); err != nil {
		return err
	}
	return m.Superblock.Unmount()
}

// Stats reports the mount's top-level utilization diagnostics.
func (m *Mount) Stats() superblock.Stats {
	return m.Superblock.GetStats()
}
