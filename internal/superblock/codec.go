// Package superblock implements the canonical block-0 metadata record
// and its mount lifecycle: Initialize, LoadAndValidate, mount/unmount,
// and the read-only diagnostics the mount layer depends on.
package superblock

import (
	"encoding/binary"

	"github.com/vexfs-project/vexfs-core/internal/persistence"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// SerializedSize is the fixed on-disk size of a Superblock record.
const SerializedSize = 752

const checksumOffset = 244

// ToBytes serializes sb into SerializedSize little-endian bytes,
// stamping the checksum over every other field.
func ToBytes(sb *types.Superblock) ([]byte, error) {
	if err := Validate(sb); err != nil {
		return nil, err
	}
	buf := make([]byte, SerializedSize)
	e := binary.LittleEndian

	e.PutUint64(buf[0:8], sb.Magic)
	e.PutUint64(buf[8:16], sb.BlocksCount)
	e.PutUint64(buf[16:24], sb.FreeBlocksCount)
	e.PutUint32(buf[24:28], sb.InodesCount)
	e.PutUint32(buf[28:32], sb.FreeInodesCount)
	e.PutUint32(buf[32:36], sb.BlockSize)
	e.PutUint16(buf[36:38], sb.InodeSize)
	e.PutUint16(buf[38:40], sb.VersionMajor)
	e.PutUint16(buf[40:42], sb.VersionMinor)
	e.PutUint64(buf[42:50], sb.MkfsTime)
	e.PutUint64(buf[50:58], sb.MountTime)
	e.PutUint64(buf[58:66], sb.Wtime)
	e.PutUint16(buf[66:68], sb.MountCount)
	e.PutUint16(buf[68:70], sb.MaxMountCount)
	e.PutUint16(buf[70:72], sb.State)
	e.PutUint16(buf[72:74], sb.Errors)
	e.PutUint32(buf[74:78], sb.FeatureCompat)
	e.PutUint32(buf[78:82], sb.FeatureIncompat)
	e.PutUint32(buf[82:86], sb.FeatureROCompat)
	copy(buf[86:102], sb.UUID[:])
	copy(buf[102:166], sb.VolumeName[:])
	e.PutUint64(buf[166:174], sb.FirstDataBlock)
	e.PutUint32(buf[174:178], sb.BlocksPerGroup)
	e.PutUint32(buf[178:182], sb.InodesPerGroup)
	e.PutUint32(buf[182:186], sb.GroupCount)
	e.PutUint32(buf[186:190], sb.JournalInum)
	e.PutUint32(buf[190:194], sb.JournalBlocks)
	e.PutUint64(buf[194:202], sb.JournalFirstBlock)
	e.PutUint32(buf[202:206], sb.Vector.Magic)
	e.PutUint16(buf[206:208], sb.Vector.Version)
	e.PutUint16(buf[208:210], sb.Vector.Dimensions)
	buf[210] = sb.Vector.Algorithm
	buf[211] = sb.Vector.Metric
	for i, p := range sb.Vector.Params {
		e.PutUint16(buf[212+i*2:214+i*2], p)
	}
	e.PutUint64(buf[220:228], sb.Vector.IndexBlock)
	e.PutUint32(buf[228:232], sb.Vector.IndexBlocks)
	e.PutUint64(buf[232:240], sb.Vector.VectorCount)
	e.PutUint32(buf[240:244], sb.Vector.Features)
	// checksum field (244:248) stamped below
	for i, r := range sb.Reserved {
		off := 248 + i*4
		e.PutUint32(buf[off:off+4], r)
	}

	persistence.StampChecksum(buf, checksumOffset)
	sb.Checksum = binary.LittleEndian.Uint32(buf[checksumOffset : checksumOffset+4])
	return buf, nil
}

// FromBytes deserializes a Superblock from exactly SerializedSize
// bytes, verifying magic, size and checksum before returning.
func FromBytes(data []byte) (*types.Superblock, error) {
	if err := persistence.VerifySize(data, SerializedSize); err != nil {
		return nil, err
	}
	e := binary.LittleEndian

	magic := e.Uint64(data[0:8])
	if magic != types.SuperblockMagic {
		return nil, vexerrors.New(vexerrors.KindInvalidMagic, "")
	}
	if err := persistence.VerifyChecksum(data, checksumOffset); err != nil {
		return nil, err
	}

	sb := &types.Superblock{}
	sb.Magic = magic
	sb.BlocksCount = e.Uint64(data[8:16])
	sb.FreeBlocksCount = e.Uint64(data[16:24])
	sb.InodesCount = e.Uint32(data[24:28])
	sb.FreeInodesCount = e.Uint32(data[28:32])
	sb.BlockSize = e.Uint32(data[32:36])
	sb.InodeSize = e.Uint16(data[36:38])
	sb.VersionMajor = e.Uint16(data[38:40])
	sb.VersionMinor = e.Uint16(data[40:42])
	sb.MkfsTime = e.Uint64(data[42:50])
	sb.MountTime = e.Uint64(data[50:58])
	sb.Wtime = e.Uint64(data[58:66])
	sb.MountCount = e.Uint16(data[66:68])
	sb.MaxMountCount = e.Uint16(data[68:70])
	sb.State = e.Uint16(data[70:72])
	sb.Errors = e.Uint16(data[72:74])
	sb.FeatureCompat = e.Uint32(data[74:78])
	sb.FeatureIncompat = e.Uint32(data[78:82])
	sb.FeatureROCompat = e.Uint32(data[82:86])
	copy(sb.UUID[:], data[86:102])
	copy(sb.VolumeName[:], data[102:166])
	sb.FirstDataBlock = e.Uint64(data[166:174])
	sb.BlocksPerGroup = e.Uint32(data[174:178])
	sb.InodesPerGroup = e.Uint32(data[178:182])
	sb.GroupCount = e.Uint32(data[182:186])
	sb.JournalInum = e.Uint32(data[186:190])
	sb.JournalBlocks = e.Uint32(data[190:194])
	sb.JournalFirstBlock = e.Uint64(data[194:202])
	sb.Vector.Magic = e.Uint32(data[202:206])
	sb.Vector.Version = e.Uint16(data[206:208])
	sb.Vector.Dimensions = e.Uint16(data[208:210])
	sb.Vector.Algorithm = data[210]
	sb.Vector.Metric = data[211]
	for i := range sb.Vector.Params {
		sb.Vector.Params[i] = e.Uint16(data[212+i*2 : 214+i*2])
	}
	sb.Vector.IndexBlock = e.Uint64(data[220:228])
	sb.Vector.IndexBlocks = e.Uint32(data[228:232])
	sb.Vector.VectorCount = e.Uint64(data[232:240])
	sb.Vector.Features = e.Uint32(data[240:244])
	sb.Checksum = e.Uint32(data[244:248])
	for i := range sb.Reserved {
		off := 248 + i*4
		sb.Reserved[i] = e.Uint32(data[off : off+4])
	}

	if err := Validate(sb); err != nil {
		return nil, err
	}
	return sb, nil
}

// Validate checks the structural invariants the data model names:
// free counts never exceed totals, block size is a bounded power of
// two, and the version is not newer than this implementation supports.
func Validate(sb *types.Superblock) error {
	if sb.FreeBlocksCount > sb.BlocksCount {
		return vexerrors.New(vexerrors.KindInvalidData, "free_blocks exceeds blocks_count")
	}
	if sb.FreeInodesCount > sb.InodesCount {
		return vexerrors.New(vexerrors.KindInvalidData, "free_inodes exceeds inodes_count")
	}
	if !types.IsPowerOfTwo(sb.BlockSize) || sb.BlockSize < types.MinBlockSize || sb.BlockSize > types.MaxBlockSize {
		return vexerrors.New(vexerrors.KindInvalidData, "block_size out of bounds")
	}
	if sb.VersionMajor > types.VersionMajor {
		return vexerrors.New(vexerrors.KindUnsupportedVersion, "")
	}
	if sb.VersionMajor == types.VersionMajor && sb.VersionMinor > types.VersionMinor {
		return vexerrors.New(vexerrors.KindUnsupportedVersion, "")
	}
	if sb.FeatureIncompat&^types.KnownIncompatMask != 0 {
		return vexerrors.New(vexerrors.KindUnsupportedVersion, "unknown incompatible feature bit")
	}
	return nil
}

// ReadOnlyRequired reports whether sb carries an ro_compat bit this
// implementation does not recognize, forcing a read-only mount.
func ReadOnlyRequired(sb *types.Superblock) bool {
	return sb.FeatureROCompat&^types.KnownROCompatMask != 0
}
