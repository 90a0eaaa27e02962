package cow

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/cache"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Stats are the CoW engine's observable counters.
type Stats struct {
	MappingCount      int
	SnapshotCount     int
	CowWrites         uint64
	BlocksAllocated   uint64
}

// SpaceEfficiency reports the fraction of allocated blocks that are
// still shared rather than privately copied, a coarse indicator of how
// much a snapshot lineage is costing in duplicated storage.
func (s Stats) SpaceEfficiency() float64 {
	if s.BlocksAllocated == 0 {
		return 1
	}
	return 1 - float64(s.CowWrites)/float64(s.BlocksAllocated)
}

// Engine implements the CoW contract: GetMapping, CowRead, CowWrite,
// CreateSnapshot, RemoveMapping.
type Engine struct {
	mu        sync.RWMutex
	arena     *Arena
	current   map[types.InodeNumber]uint64 // inode -> generation id of its live mapping
	nextInode types.InodeNumber
	allocator *block.Allocator
	cacheMgr  *cache.Manager
	clock     clock.Clock
	log       zerolog.Logger
	stats     Stats
}

// NewEngine constructs a CoW Engine over the given allocator and cache
// manager. startInode seeds the synthetic inode numbers minted for
// snapshots, kept disjoint from the caller's own inode namespace.
func NewEngine(allocator *block.Allocator, cacheMgr *cache.Manager, c clock.Clock, startInode types.InodeNumber) *Engine {
	return &Engine{
		arena:     NewArena(),
		current:   make(map[types.InodeNumber]uint64),
		nextInode: startInode,
		allocator: allocator,
		cacheMgr:  cacheMgr,
		clock:     c,
		log:       zerolog.Nop(),
	}
}

// WithLogger attaches a logger used to narrate snapshot creation.
func (e *Engine) WithLogger(l zerolog.Logger) *Engine {
	e.log = l
	return e
}

// GetMapping returns inode's mapping, creating an empty one on first
// use.
func (e *Engine) GetMapping(inode types.InodeNumber) *types.CowMapping {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getOrCreateLocked(inode)
}

func (e *Engine) getOrCreateLocked(inode types.InodeNumber) *types.CowMapping {
	if gen, ok := e.current[inode]; ok {
		m, _ := e.arena.get(gen)
		return m
	}
	gen := e.arena.allocGeneration()
	m := &types.CowMapping{Inode: inode, Generation: gen, RefCount: 1}
	e.arena.store(m)
	e.current[inode] = gen
	e.stats.MappingCount++
	return m
}

// AddExtent appends an extent to inode's mapping at logicalStart,
// backed by the given initial physical blocks. It fails with
// InvalidArgument if the new extent would overlap an existing one.
func (e *Engine) AddExtent(inode types.InodeNumber, logicalStart uint64, initial []types.BlockNumber, flags types.CowExtentFlags, now uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.getOrCreateLocked(inode)
	if m.Flags&types.CowMappingSnapshot != 0 {
		return vexerrors.New(vexerrors.KindInvalidOperation, "cannot extend a snapshot mapping")
	}

	blocks := make([]*types.CowBlockRef, len(initial))
	for i, b := range initial {
		blocks[i] = &types.CowBlockRef{OriginalBlock: b, CurrentBlock: b, RefCount: 1, Generation: m.Generation, Flags: types.CowBlockOriginal}
	}
	ext := &types.CowExtent{
		LogicalStart: logicalStart,
		BlockCount:   uint64(len(initial)),
		Blocks:       blocks,
		CreatedAt:    now,
		ModifiedAt:   now,
		Flags:        flags | types.CowExtentActive,
	}
	for _, existing := range m.Extents {
		if ext.Overlaps(existing) {
			return vexerrors.New(vexerrors.KindInvalidArgument, "extent overlaps existing extent")
		}
	}
	m.Extents = append(m.Extents, ext)
	if end := ext.End(); end > m.LogicalSize {
		m.LogicalSize = end
	}
	m.Generation++
	return nil
}

// findExtent returns the extent covering logicalOffset, or nil.
func findExtent(m *types.CowMapping, logicalOffset uint64) *types.CowExtent {
	for _, ext := range m.Extents {
		if logicalOffset >= ext.LogicalStart && logicalOffset < ext.End() {
			return ext
		}
	}
	return nil
}

// CowRead returns the bytes visible at (inode, logicalOffset), walking
// the mapping's own extents first and then its parent chain.
func (e *Engine) CowRead(inode types.InodeNumber, logicalOffset uint64) ([]byte, error) {
	e.mu.RLock()
	gen, ok := e.current[inode]
	e.mu.RUnlock()
	if !ok {
		return nil, vexerrors.New(vexerrors.KindEntryNotFound, "no mapping for inode")
	}
	return e.readFromGeneration(gen, logicalOffset)
}

func (e *Engine) readFromGeneration(gen uint64, logicalOffset uint64) ([]byte, error) {
	for {
		m, ok := e.arena.get(gen)
		if !ok {
			return nil, vexerrors.New(vexerrors.KindEntryNotFound, "mapping generation not found")
		}
		if ext := findExtent(m, logicalOffset); ext != nil {
			idx := logicalOffset - ext.LogicalStart
			ref := ext.Blocks[idx]
			return e.cacheMgr.ReadBlock(ref.CurrentBlock)
		}
		if !m.HasParent {
			return nil, vexerrors.New(vexerrors.KindEntryNotFound, "offset not mapped")
		}
		gen = m.ParentGeneration
	}
}

// CowWrite writes data at (inode, logicalOffset), performing a
// copy-on-write of the backing physical block first if it is shared or
// belongs to a snapshot lineage.
func (e *Engine) CowWrite(inode types.InodeNumber, logicalOffset uint64, data []byte, now uint64) (types.BlockNumber, error) {
	e.mu.Lock()
	gen, ok := e.current[inode]
	e.mu.Unlock()
	if !ok {
		return 0, vexerrors.New(vexerrors.KindInvalidArgument, "no mapping for inode")
	}

	m, _ := e.arena.get(gen)
	if m.Flags&types.CowMappingSnapshot != 0 {
		return 0, vexerrors.New(vexerrors.KindInvalidOperation, "cannot write through a snapshot handle")
	}

	ext := findExtent(m, logicalOffset)
	if ext == nil {
		return 0, vexerrors.New(vexerrors.KindInvalidArgument, "offset not mapped")
	}
	idx := logicalOffset - ext.LogicalStart
	ref := ext.Blocks[idx]

	e.mu.Lock()
	defer e.mu.Unlock()

	if ref.NeedsCow() {
		newBlock, err := e.allocator.Allocate()
		if err != nil {
			return 0, err
		}
		old, err := e.cacheMgr.ReadBlock(ref.CurrentBlock)
		if err != nil {
			e.allocator.Free(newBlock)
			return 0, err
		}
		if err := e.cacheMgr.WriteBlock(newBlock, old); err != nil {
			e.allocator.Free(newBlock)
			return 0, err
		}
		if ref.RefCount > 0 {
			ref.RefCount--
		}
		if ref.RefCount <= 1 {
			ref.Flags &^= types.CowBlockShared
		}
		newRef := &types.CowBlockRef{
			OriginalBlock: ref.OriginalBlock,
			CurrentBlock:  newBlock,
			RefCount:      1,
			Generation:    m.Generation + 1,
			Flags:         types.CowBlockCopied,
		}
		ext.Blocks[idx] = newRef
		ref = newRef
		m.Generation++
		e.stats.CowWrites++
		e.stats.BlocksAllocated++
	}

	ext.ModifiedAt = now
	if err := e.cacheMgr.WriteBlock(ref.CurrentBlock, data); err != nil {
		return 0, err
	}
	return ref.CurrentBlock, nil
}

// CreateSnapshot constructs an immutable, lazily-shared view of
// inode's mapping at the current moment and returns a fresh snapshot
// inode number addressing it. Every block the live mapping references
// becomes logically shared: the next write to any of them triggers
// CoW, while the snapshot's own extent copy keeps pointing at the
// pre-write block.
func (e *Engine) CreateSnapshot(inode types.InodeNumber) (types.InodeNumber, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	gen, ok := e.current[inode]
	if !ok {
		return 0, vexerrors.New(vexerrors.KindInvalidArgument, "no mapping for inode")
	}
	live, _ := e.arena.get(gen)

	// gen is the arena key live is actually stored under; live.Generation
	// is a per-mapping version counter that AddExtent/CowWrite bump after
	// every mutation and drifts away from that key, so it must never be
	// used to address the arena.
	clonedExtents := make([]*types.CowExtent, len(live.Extents))
	for i, ext := range live.Extents {
		blocks := make([]*types.CowBlockRef, len(ext.Blocks))
		for j, ref := range ext.Blocks {
			ref.RefCount++
			ref.Flags |= types.CowBlockShared
			blocks[j] = ref // alias: snapshot and live share the same ref until CoW splits them
		}
		clonedExtents[i] = &types.CowExtent{
			LogicalStart: ext.LogicalStart,
			BlockCount:   ext.BlockCount,
			Blocks:       blocks,
			CreatedAt:    ext.CreatedAt,
			ModifiedAt:   ext.ModifiedAt,
			Flags:        ext.Flags | types.CowExtentSnapshot,
		}
	}

	snapGen := e.arena.allocGeneration()
	snap := &types.CowMapping{
		Inode:            e.nextInode,
		Extents:          clonedExtents,
		LogicalSize:      live.LogicalSize,
		Generation:       snapGen,
		Flags:            types.CowMappingSnapshot | types.CowMappingReadOnly,
		RefCount:         1,
		ParentGeneration: gen,
		HasParent:        true,
	}
	e.arena.store(snap)
	e.current[e.nextInode] = snapGen
	snapInode := e.nextInode
	e.nextInode++
	e.stats.SnapshotCount++
	e.log.Info().Uint64("source_inode", uint64(inode)).Uint64("snapshot_inode", uint64(snapInode)).Msg("snapshot created")
	return snapInode, nil
}

// ReleaseSnapshot decrements a snapshot mapping's reference count,
// returning the count after the release. A caller that observes a
// return of 0 may safely ask the garbage collector to reclaim it on
// its next pass.
func (e *Engine) ReleaseSnapshot(inode types.InodeNumber) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	gen, ok := e.current[inode]
	if !ok {
		return 0, vexerrors.New(vexerrors.KindInvalidArgument, "no mapping for inode")
	}
	m, _ := e.arena.get(gen)
	if m.Flags&types.CowMappingSnapshot == 0 {
		return 0, vexerrors.New(vexerrors.KindInvalidOperation, "not a snapshot mapping")
	}
	if m.RefCount > 0 {
		m.RefCount--
	}
	return m.RefCount, nil
}

// RemoveMapping drops inode's mapping from the arena. Callers must
// ensure no snapshot still depends on it as a parent before calling
// this (the garbage collector's clean-obsolete-snapshots phase
// enforces that check).
func (e *Engine) RemoveMapping(inode types.InodeNumber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	gen, ok := e.current[inode]
	if !ok {
		return
	}
	e.arena.delete(gen)
	delete(e.current, inode)
	e.stats.MappingCount--
}

// Stats reports the engine's observable counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// Arena exposes the underlying mapping arena for the garbage collector's
// reachability walk.
func (e *Engine) Arena() *Arena { return e.arena }
