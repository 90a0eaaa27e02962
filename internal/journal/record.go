package journal

import (
	"encoding/binary"

	"github.com/vexfs-project/vexfs-core/internal/persistence"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// recordHeaderSize is the fixed prefix before a record's payload: kind
// (1 byte), tx id (8 bytes), checksum (4 bytes at checksumOffset, IEEE
// CRC-32 of the header-with-checksum-zeroed plus payload), payload
// length (4 bytes).
const recordHeaderSize = 1 + 8 + 4 + 4

const checksumOffset = 9

// encodeRecord lays rec out as one block-sized buffer: header, payload,
// zero padding. A record's payload must fit within blockSize -
// recordHeaderSize.
func encodeRecord(blockSize uint32, rec types.JournalRecord) ([]byte, error) {
	if recordHeaderSize+len(rec.Payload) > int(blockSize) {
		return nil, vexerrors.New(vexerrors.KindInvalidArgument, "journal record exceeds block size")
	}
	buf := make([]byte, blockSize)
	buf[0] = byte(rec.Kind)
	binary.LittleEndian.PutUint64(buf[1:9], rec.TxID)
	binary.LittleEndian.PutUint32(buf[13:17], uint32(len(rec.Payload)))
	copy(buf[recordHeaderSize:], rec.Payload)

	binary.LittleEndian.PutUint32(buf[checksumOffset:checksumOffset+4], 0)
	sum := persistence.Checksum(buf[:recordHeaderSize+len(rec.Payload)])
	binary.LittleEndian.PutUint32(buf[checksumOffset:checksumOffset+4], sum)
	return buf, nil
}

// decodeRecord parses a block previously produced by encodeRecord and
// verifies its checksum. A block of all zero bytes (never written)
// decodes to ok=false rather than an error.
func decodeRecord(buf []byte) (types.JournalRecord, bool, error) {
	if isZero(buf) {
		return types.JournalRecord{}, false, nil
	}
	if len(buf) < recordHeaderSize {
		return types.JournalRecord{}, false, vexerrors.New(vexerrors.KindInvalidData, "journal block too small")
	}
	kind := types.RecordKind(buf[0])
	txID := binary.LittleEndian.Uint64(buf[1:9])
	payloadLen := binary.LittleEndian.Uint32(buf[13:17])
	stored := binary.LittleEndian.Uint32(buf[checksumOffset : checksumOffset+4])
	if recordHeaderSize+int(payloadLen) > len(buf) {
		return types.JournalRecord{}, false, vexerrors.New(vexerrors.KindInvalidData, "journal record payload length out of range")
	}
	payload := append([]byte(nil), buf[recordHeaderSize:recordHeaderSize+int(payloadLen)]...)

	scratch := append([]byte(nil), buf[:recordHeaderSize+int(payloadLen)]...)
	binary.LittleEndian.PutUint32(scratch[checksumOffset:checksumOffset+4], 0)
	computed := persistence.Checksum(scratch)
	if computed != stored {
		return types.JournalRecord{}, false, vexerrors.New(vexerrors.KindChecksumMismatch, "journal record checksum mismatch")
	}

	return types.JournalRecord{Kind: kind, TxID: txID, Payload: payload, Checksum: stored}, true, nil
}

func isZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
