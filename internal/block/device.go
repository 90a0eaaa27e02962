// Package block implements the fixed-size block read/write and
// allocate/free abstraction every higher layer is built on top of.
package block

import (
	"io"
	"os"
	"sync"

	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Device is the minimal contract every storage backend must satisfy:
// fixed-size block read/write over a fixed total block count.
type Device interface {
	ReadBlock(num types.BlockNumber) ([]byte, error)
	WriteBlock(num types.BlockNumber, data []byte) error
	BlockCount() uint64
	BlockSize() uint32
	io.Closer
}

// FileDevice is a Device backed by a regular file or block special
// file, addressed by block number times block size.
type FileDevice struct {
	mu         sync.Mutex
	file       *os.File
	blockSize  uint32
	blockCount uint64
}

// OpenFile opens path as a Device with the given block size, computing
// the block count from the file's current size.
func OpenFile(path string, blockSize uint32) (*FileDevice, error) {
	if !types.IsPowerOfTwo(blockSize) || blockSize < types.MinBlockSize || blockSize > types.MaxBlockSize {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "block size out of bounds")
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, vexerrors.Wrap(vexerrors.KindInternal, "open device", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, vexerrors.Wrap(vexerrors.KindInternal, "stat device", err)
	}
	return &FileDevice{
		file:       f,
		blockSize:  blockSize,
		blockCount: uint64(stat.Size()) / uint64(blockSize),
	}, nil
}

// CreateFile creates (or truncates) path to hold blockCount blocks of
// blockSize bytes each, for mkfs use.
func CreateFile(path string, blockSize uint32, blockCount uint64) (*FileDevice, error) {
	if !types.IsPowerOfTwo(blockSize) || blockSize < types.MinBlockSize || blockSize > types.MaxBlockSize {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "block size out of bounds")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, vexerrors.Wrap(vexerrors.KindInternal, "create device", err)
	}
	if err := f.Truncate(int64(blockSize) * int64(blockCount)); err != nil {
		f.Close()
		return nil, vexerrors.Wrap(vexerrors.KindInternal, "truncate device", err)
	}
	return &FileDevice{file: f, blockSize: blockSize, blockCount: blockCount}, nil
}

// ReadBlock reads exactly one block's worth of bytes at num.
func (d *FileDevice) ReadBlock(num types.BlockNumber) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if uint64(num) >= d.blockCount {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "block number out of range")
	}
	buf := make([]byte, d.blockSize)
	off := int64(num) * int64(d.blockSize)
	if _, err := d.file.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, vexerrors.Wrap(vexerrors.KindInternal, "read block", err)
	}
	return buf, nil
}

// WriteBlock writes data (which must be exactly BlockSize bytes) at
// num.
func (d *FileDevice) WriteBlock(num types.BlockNumber, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if uint64(num) >= d.blockCount {
		return vexerrors.New(vexerrors.KindInvalidArgument, "block number out of range")
	}
	if uint32(len(data)) != d.blockSize {
		return vexerrors.New(vexerrors.KindInvalidArgument, "data does not match block size")
	}
	off := int64(num) * int64(d.blockSize)
	if _, err := d.file.WriteAt(data, off); err != nil {
		return vexerrors.Wrap(vexerrors.KindInternal, "write block", err)
	}
	return nil
}

// BlockCount returns the total number of addressable blocks.
func (d *FileDevice) BlockCount() uint64 { return d.blockCount }

// BlockSize returns the device's fixed block size in bytes.
func (d *FileDevice) BlockSize() uint32 { return d.blockSize }

// Close closes the underlying file.
func (d *FileDevice) Close() error { return d.file.Close() }

// MemoryDevice is an in-memory Device used by tests and by scratch
// mounts that never need real durability.
type MemoryDevice struct {
	mu        sync.Mutex
	blockSize uint32
	blocks    [][]byte
}

// NewMemoryDevice allocates a zero-filled in-memory device of
// blockCount blocks.
func NewMemoryDevice(blockSize uint32, blockCount uint64) *MemoryDevice {
	blocks := make([][]byte, blockCount)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &MemoryDevice{blockSize: blockSize, blocks: blocks}
}

func (d *MemoryDevice) ReadBlock(num types.BlockNumber) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(num) >= len(d.blocks) {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "block number out of range")
	}
	out := make([]byte, d.blockSize)
	copy(out, d.blocks[num])
	return out, nil
}

func (d *MemoryDevice) WriteBlock(num types.BlockNumber, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(num) >= len(d.blocks) {
		return vexerrors.New(vexerrors.KindInvalidArgument, "block number out of range")
	}
	if uint32(len(data)) != d.blockSize {
		return vexerrors.New(vexerrors.KindInvalidArgument, "data does not match block size")
	}
	copy(d.blocks[num], data)
	return nil
}

func (d *MemoryDevice) BlockCount() uint64 { return uint64(len(d.blocks)) }
func (d *MemoryDevice) BlockSize() uint32  { return d.blockSize }
func (d *MemoryDevice) Close() error       { return nil }
