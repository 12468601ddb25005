package kv

import (
	"context"
	"fmt"

	"github.com/roasbeef/tdcore/internal/binlog"
	"github.com/roasbeef/tdcore/internal/seqkv"
	"github.com/roasbeef/tdcore/internal/sqlitestore"
)

// SqliteKeyValue is the second PersistentKV implementation spec §4.6
// describes: state lives in a SQL table, each mutation an implicit
// transaction. It keeps an in-memory TsSeqKeyValue purely for SeqNo
// bookkeeping and no-op detection — durability itself lives entirely in
// the SQL table, not in this shadow copy — hydrated once from GetAll() at
// open time.
type SqliteKeyValue struct {
	conns     *sqlitestore.SqliteConnectionSafe
	safe      *sqlitestore.SqliteKeyValueSafe
	threadKey string
	shadow    *seqkv.TsSeqKeyValue
}

// OpenSqliteKeyValue opens (or creates) the store at path and hydrates the
// in-memory SeqNo shadow from its current contents.
func OpenSqliteKeyValue(path string, allowCreate bool, dbKey binlog.DbKey, threadKey string) (*SqliteKeyValue, error) {
	conns := sqlitestore.NewSqliteConnectionSafe(path, allowCreate, dbKey)
	safe := sqlitestore.NewSqliteKeyValueSafe(conns)

	all, err := safe.GetAll(context.Background(), threadKey)
	if err != nil {
		safe.Close()
		return nil, fmt.Errorf("hydrate sqlite key-value shadow: %w", err)
	}

	shadow := seqkv.NewTs()
	for k, v := range all {
		shadow.Set(k, string(v))
	}

	return &SqliteKeyValue{
		conns:     conns,
		safe:      safe,
		threadKey: threadKey,
		shadow:    shadow,
	}, nil
}

// Get returns the stored value for key, or "" if absent.
func (s *SqliteKeyValue) Get(key string) string {
	return s.shadow.Get(key)
}

// Set stores value under key, persisting it in the SQL table if it
// actually changed the shadow's state.
func (s *SqliteKeyValue) Set(ctx context.Context, key, value string) (seqkv.SeqNo, error) {
	no, release := s.shadow.SetAndLock(key, value)
	defer release()

	if no == 0 {
		return 0, nil
	}

	if err := s.safe.Set(ctx, s.threadKey, []byte(key), []byte(value)); err != nil {
		return no, fmt.Errorf("persist sqlite kv set: %w", err)
	}
	return no, nil
}

// Erase removes key, persisting the removal if it existed.
func (s *SqliteKeyValue) Erase(ctx context.Context, key string) (seqkv.SeqNo, error) {
	no, release := s.shadow.EraseAndLock(key)
	defer release()

	if no == 0 {
		return 0, nil
	}

	if _, err := s.safe.Erase(ctx, s.threadKey, []byte(key)); err != nil {
		return no, fmt.Errorf("persist sqlite kv erase: %w", err)
	}
	return no, nil
}

// EraseBatch removes every key in keys that exists, in one transaction.
func (s *SqliteKeyValue) EraseBatch(ctx context.Context, keys []string) (seqkv.SeqNo, error) {
	inner, release := s.shadow.Lock()
	defer release()

	existing := inner.GetAll()
	removed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if _, ok := existing[k]; ok {
			removed = append(removed, []byte(k))
		}
	}

	no := inner.EraseBatch(keys)
	if no == 0 {
		return 0, nil
	}

	if _, err := s.safe.EraseBatch(ctx, s.threadKey, removed); err != nil {
		return no, fmt.Errorf("persist sqlite kv erase_batch: %w", err)
	}
	return no, nil
}

// Close closes every underlying connection.
func (s *SqliteKeyValue) Close() error {
	return s.safe.Close()
}
