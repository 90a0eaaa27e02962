package block

import (
	"sync"

	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Allocator tracks free/used blocks over a Device with a simple bitmap,
// marking the low reservedBlocks (superblock, journal) used at
// construction. Free does not distinguish reserved blocks from others.
type Allocator struct {
	mu        sync.Mutex
	used      []bool
	freeCount uint64
}

// NewAllocator builds an Allocator over total blocks, with the first
// reservedBlocks marked used.
func NewAllocator(total uint64, reservedBlocks uint64) *Allocator {
	used := make([]bool, total)
	for i := uint64(0); i < reservedBlocks && i < total; i++ {
		used[i] = true
	}
	free := total - reservedBlocks
	if reservedBlocks > total {
		free = 0
	}
	return &Allocator{used: used, freeCount: free}
}

// Allocate reserves and returns the lowest-numbered free block.
func (a *Allocator) Allocate() (types.BlockNumber, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, u := range a.used {
		if !u {
			a.used[i] = true
			a.freeCount--
			return types.BlockNumber(i), nil
		}
	}
	return 0, vexerrors.New(vexerrors.KindNoSpace, "no free blocks")
}

// Free releases num back to the pool. Freeing an already-free block is
// a no-op.
func (a *Allocator) Free(num types.BlockNumber) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(num) >= len(a.used) {
		return vexerrors.New(vexerrors.KindInvalidArgument, "block number out of range")
	}
	if a.used[num] {
		a.used[num] = false
		a.freeCount++
	}
	return nil
}

// MarkUsed forces num into the used state without decrementing
// freeCount twice, for replaying allocations recovered from an
// existing mapping set at mount time.
func (a *Allocator) MarkUsed(num types.BlockNumber) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(num) < len(a.used) && !a.used[num] {
		a.used[num] = true
		a.freeCount--
	}
}

// FreeCount returns the number of currently unallocated blocks.
func (a *Allocator) FreeCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeCount
}

// IsUsed reports whether num is currently allocated.
func (a *Allocator) IsUsed(num types.BlockNumber) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(num) >= len(a.used) {
		return false
	}
	return a.used[num]
}

// Total returns the number of blocks the allocator was built over.
func (a *Allocator) Total() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint64(len(a.used))
}

// UsedBlocks returns every block number currently marked allocated,
// for the garbage collector's sweep phase.
func (a *Allocator) UsedBlocks() []types.BlockNumber {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.BlockNumber, 0, len(a.used)-int(a.freeCount))
	for i, u := range a.used {
		if u {
			out = append(out, types.BlockNumber(i))
		}
	}
	return out
}
