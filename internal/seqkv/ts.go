package seqkv

import "sync"

// TsSeqKeyValue wraps SeqKeyValue behind a read/write mutex (spec §4.5:
// "TsSeqKeyValue wraps the above behind a read/write mutex"). Write
// methods additionally expose a *AndLock variant that returns a release
// func, letting a caller atomically mutate the map and then persist the
// mutation (e.g. append a binlog event) while still holding the write
// lock — the set_and_lock/erase_and_lock pattern from
// original_source/tddb/td/db/TsSeqKeyValue.h.
type TsSeqKeyValue struct {
	mu sync.RWMutex
	kv *SeqKeyValue
}

// NewTs creates an empty thread-safe SeqKeyValue.
func NewTs() *TsSeqKeyValue {
	return &TsSeqKeyValue{kv: New()}
}

// Get returns the stored value for key, or "" if absent.
func (t *TsSeqKeyValue) Get(key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.kv.Get(key)
}

// Set stores value under key, returning its SeqNo (0 if unchanged).
func (t *TsSeqKeyValue) Set(key, value string) SeqNo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.kv.Set(key, value)
}

// Erase removes key, returning its SeqNo (0 if absent).
func (t *TsSeqKeyValue) Erase(key string) SeqNo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.kv.Erase(key)
}

// EraseBatch removes every existing key in keys.
func (t *TsSeqKeyValue) EraseBatch(keys []string) SeqNo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.kv.EraseBatch(keys)
}

// SeqNoNext returns the sequence number the next mutation will receive.
func (t *TsSeqKeyValue) SeqNoNext() SeqNo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.kv.SeqNoNext()
}

// GetAll returns a copy of the full key-value map.
func (t *TsSeqKeyValue) GetAll() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.kv.GetAll()
}

// Lock acquires the write lock and returns the underlying SeqKeyValue
// along with a release func, so a caller can mutate the map and persist
// the mutation (e.g. append a binlog event for it) as one atomic step
// before any other writer observes the new state.
func (t *TsSeqKeyValue) Lock() (*SeqKeyValue, func()) {
	t.mu.Lock()
	return t.kv, t.mu.Unlock
}

// SetAndLock sets key=value, then returns a release func that must be
// called (typically after persisting the mutation) to release the write
// lock acquired for the whole operation. The SeqNo is returned immediately;
// it is valid whether or not the caller has released the lock yet.
func (t *TsSeqKeyValue) SetAndLock(key, value string) (SeqNo, func()) {
	t.mu.Lock()
	no := t.kv.Set(key, value)
	return no, t.mu.Unlock
}

// EraseAndLock erases key, then returns a release func analogous to
// SetAndLock.
func (t *TsSeqKeyValue) EraseAndLock(key string) (SeqNo, func()) {
	t.mu.Lock()
	no := t.kv.Erase(key)
	return no, t.mu.Unlock
}
