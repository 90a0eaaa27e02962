// Package persistence implements the serialize/deserialize/checksum
// contract every on-disk record goes through before crossing the block
// device boundary.
//
// Checksums use crc32.ChecksumIEEE rather than a hand-rolled algorithm:
// the retrieved original implementation computes its own superblock
// checksum with a plain crc32 call, not a filesystem-specific digest
// like the container-superblock's Fletcher64, so there is no domain
// algorithm here to ground a third-party or hand-rolled replacement on.
package persistence

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// Record is any on-disk structure that can serialize itself to bytes,
// validate its own structural invariants, and report its declared
// on-disk size.
type Record interface {
	ToBytes(endian binary.ByteOrder) ([]byte, error)
	Validate() error
	SerializedSize() int
}

// Checksum computes the CRC-32 (IEEE) checksum of data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Manager reads and writes structured records across the block-device
// boundary. It is parameterized by block size and whether checksum
// verification is enabled. It is not the only such path: the superblock
// codec and the journal encode their records themselves and call the
// package-level checksum helpers directly.
type Manager struct {
	BlockSize       uint32
	ChecksumEnabled bool
	Endian          binary.ByteOrder
}

// NewManager constructs a Manager for the given block size.
func NewManager(blockSize uint32, checksumEnabled bool) *Manager {
	return &Manager{
		BlockSize:       blockSize,
		ChecksumEnabled: checksumEnabled,
		Endian:          binary.LittleEndian,
	}
}

// VerifySize rejects a buffer whose length does not match declaredSize,
// guarding against on-disk format skew between the reader and the bytes
// it is handed.
func VerifySize(data []byte, declaredSize int) error {
	if len(data) != declaredSize {
		return vexerrors.New(vexerrors.KindInvalidData,
			"serialized size mismatch")
	}
	return nil
}

// VerifyChecksum recomputes the CRC-32 of data with the checksumOffset
// (4 bytes, little-endian) zeroed, and compares it against the stored
// value at that offset.
func VerifyChecksum(data []byte, checksumOffset int) error {
	if checksumOffset+4 > len(data) {
		return vexerrors.New(vexerrors.KindInvalidData, "checksum field out of range")
	}
	stored := binary.LittleEndian.Uint32(data[checksumOffset : checksumOffset+4])
	scratch := make([]byte, len(data))
	copy(scratch, data)
	binary.LittleEndian.PutUint32(scratch[checksumOffset:checksumOffset+4], 0)
	computed := Checksum(scratch)
	if computed != stored {
		return vexerrors.New(vexerrors.KindChecksumMismatch, "")
	}
	return nil
}

// StampChecksum recomputes the checksum of data with checksumOffset
// zeroed and writes it back into that field.
func StampChecksum(data []byte, checksumOffset int) {
	scratch := make([]byte, len(data))
	copy(scratch, data)
	binary.LittleEndian.PutUint32(scratch[checksumOffset:checksumOffset+4], 0)
	computed := Checksum(scratch)
	binary.LittleEndian.PutUint32(data[checksumOffset:checksumOffset+4], computed)
}
