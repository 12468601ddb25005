package binlog

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// recordHeaderSize is the fixed-size portion of a record preceding the
// variable-length payload: length(4) + event_id(8) + type(4) + flags(4) +
// extra(8) + payload_len(4) (spec §4.3 "Record layout"). payload_len is the
// true, unpadded byte count of Payload; the bytes between it and the next
// 4-byte boundary are zero padding that is not part of the payload.
const recordHeaderSize = 4 + 8 + 4 + 4 + 8 + 4

// crcSize is the trailing integrity code's width.
const crcSize = 4

// Record is one framed binlog entry (spec §3 "BinlogEvent", §4.3 "Record
// layout"). EventID strictly increases across all records in a file.
type Record struct {
	EventID uint64
	Type    uint32
	Flags   uint32
	Extra   uint64
	Payload []byte
}

// padLen returns the number of zero bytes appended after Payload so the
// CRC starts on a 4-byte boundary (spec: "payload: bytes, padded to 4").
func padLen(payloadLen int) int {
	rem := payloadLen % 4
	if rem == 0 {
		return 0
	}
	return 4 - rem
}

// encodedLength returns the total on-disk size of r, including its own
// length field.
func (r Record) encodedLength() uint32 {
	return uint32(recordHeaderSize + len(r.Payload) + padLen(len(r.Payload)) + crcSize)
}

// Marshal frames r as spec §4.3 describes: length covers the whole
// record including its own field.
func (r Record) Marshal() []byte {
	total := r.encodedLength()
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:4], total)
	binary.LittleEndian.PutUint64(buf[4:12], r.EventID)
	binary.LittleEndian.PutUint32(buf[12:16], r.Type)
	binary.LittleEndian.PutUint32(buf[16:20], r.Flags)
	binary.LittleEndian.PutUint64(buf[20:28], r.Extra)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(len(r.Payload)))

	copy(buf[recordHeaderSize:], r.Payload)

	crcEnd := int(total) - crcSize
	crc := crc32.ChecksumIEEE(buf[:crcEnd])
	binary.LittleEndian.PutUint32(buf[crcEnd:], crc)

	return buf
}

// errShortRecord signals that fewer bytes are available than the record's
// declared length claims — either a truncated file (crash mid-append) or
// not enough data has been read yet.
var errShortRecord = fmt.Errorf("short record")

// errBadCRC signals a CRC mismatch: the record is corrupt.
var errBadCRC = fmt.Errorf("bad record crc")

// parseRecord decodes one record from the front of data. It returns the
// decoded record, the number of bytes consumed, and an error. A caller
// seeing errShortRecord should treat everything from the start of this
// record onward as not-yet-written and stop replay there (truncating on
// next open); errBadCRC means the same for a record that is present but
// corrupt.
func parseRecord(data []byte) (Record, int, error) {
	if len(data) < 4 {
		return Record{}, 0, errShortRecord
	}

	total := binary.LittleEndian.Uint32(data[0:4])
	if total < recordHeaderSize+crcSize || int(total) > len(data) {
		return Record{}, 0, errShortRecord
	}

	if len(data) < int(total) {
		return Record{}, 0, errShortRecord
	}

	crcEnd := int(total) - crcSize
	wantCRC := binary.LittleEndian.Uint32(data[crcEnd:total])
	gotCRC := crc32.ChecksumIEEE(data[:crcEnd])
	if wantCRC != gotCRC {
		return Record{}, 0, errBadCRC
	}

	eventID := binary.LittleEndian.Uint64(data[4:12])
	typeTag := binary.LittleEndian.Uint32(data[12:16])
	flags := binary.LittleEndian.Uint32(data[16:20])
	extra := binary.LittleEndian.Uint64(data[20:28])
	payloadLen := binary.LittleEndian.Uint32(data[28:32])

	if int(payloadLen) > crcEnd-recordHeaderSize {
		return Record{}, 0, errBadCRC
	}

	payload := make([]byte, payloadLen)
	copy(payload, data[recordHeaderSize:recordHeaderSize+int(payloadLen)])

	return Record{
		EventID: eventID,
		Type:    typeTag,
		Flags:   flags,
		Extra:   extra,
		Payload: payload,
	}, int(total), nil
}
