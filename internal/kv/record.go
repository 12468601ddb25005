package kv

import (
	"encoding/binary"
	"fmt"
)

// Binlog record type tags for persistent-KV mutations (spec §4.6:
// "each mutation emits a binlog event {type=SET|DEL, payload=TL-encoded
// (key,value?)}").
const (
	recordTypeSet   uint32 = 1
	recordTypeErase uint32 = 2
)

// encodeKV frames (key, value) as a self-delimiting payload: a 4-byte
// little-endian length prefix before every string, plus a presence byte
// before value. The explicit length prefixes let decodeKV find where the
// key ends and whether a value follows from the payload bytes alone.
func encodeKV(key string, value *string) []byte {
	size := 4 + len(key) + 1
	if value != nil {
		size += 4 + len(*value)
	}

	buf := make([]byte, size)
	off := 0
	off += putLPString(buf[off:], key)

	if value == nil {
		buf[off] = 0
		return buf
	}
	buf[off] = 1
	off++
	putLPString(buf[off:], *value)
	return buf
}

func putLPString(buf []byte, s string) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(s)))
	copy(buf[4:], s)
	return 4 + len(s)
}

// decodeKV reverses encodeKV. value is nil for a DEL record.
func decodeKV(payload []byte) (key string, value *string, err error) {
	key, rest, err := readLPString(payload)
	if err != nil {
		return "", nil, err
	}

	if len(rest) < 1 {
		return "", nil, fmt.Errorf("truncated kv record: missing presence byte")
	}
	hasValue := rest[0]
	rest = rest[1:]

	if hasValue == 0 {
		return key, nil, nil
	}

	v, _, err := readLPString(rest)
	if err != nil {
		return "", nil, err
	}
	return key, &v, nil
}

func readLPString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("truncated kv record: missing length prefix")
	}
	n := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return "", nil, fmt.Errorf("truncated kv record: short string data")
	}
	return string(data[:n]), data[n:], nil
}
