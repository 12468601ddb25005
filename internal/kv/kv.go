// Package kv implements the L3d persistent-KV compositions of spec §4.6:
// two implementations of one contract, BinlogKeyValue (a SeqKeyValue backed
// by write-ahead events) and an adapter over SqliteKeyValueSafe, grounded on
// the teacher's pattern of composing its own lower storage primitives
// (internal/db.Store wrapping internal/db.SqliteStore) behind a single
// narrow interface its callers depend on.
package kv

import (
	"context"

	"github.com/roasbeef/tdcore/internal/binlog"
	"github.com/roasbeef/tdcore/internal/seqkv"
)

// PersistentKV is the common contract spec §4.6 describes: {get, set,
// erase, erase_batch, close}. "init(path, key)" is represented by each
// implementation's own constructor (OpenBinlogKeyValue,
// OpenConcurrentBinlogKeyValue, OpenSqliteKeyValue) rather than a method on
// this interface, since Go has no useful way to call a method before a
// value of the interface type exists.
type PersistentKV interface {
	// Get returns the stored value for key, or "" if absent.
	Get(key string) string

	// Set stores value under key, returning its SeqNo (0 if the key
	// already held exactly this value).
	Set(ctx context.Context, key, value string) (seqkv.SeqNo, error)

	// Erase removes key, returning its SeqNo (0 if absent).
	Erase(ctx context.Context, key string) (seqkv.SeqNo, error)

	// EraseBatch removes every key in keys that exists, returning the
	// SeqNo of the first removal (0 if none existed).
	EraseBatch(ctx context.Context, keys []string) (seqkv.SeqNo, error)

	// Close releases the underlying storage handle.
	Close() error
}

var (
	_ PersistentKV = (*BinlogKeyValue[SyncEventLog])(nil)
	_ PersistentKV = (*BinlogKeyValue[*binlog.ConcurrentBinlog])(nil)
	_ PersistentKV = (*SqliteKeyValue)(nil)
)
