package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestKv(t *testing.T) *SqliteKeyValue {
	t.Helper()

	path := filepath.Join(t.TempDir(), "kv.db")
	db, err := OpenWithKey(path, true, DbKey{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSqliteKeyValue(db)
}

func TestSqliteKeyValueGetSetErase(t *testing.T) {
	ctx := context.Background()
	kv := openTestKv(t)

	_, ok, err := kv.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set(ctx, []byte("k"), []byte("v1")))
	got, ok, err := kv.Get(ctx, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), got)

	require.NoError(t, kv.Set(ctx, []byte("k"), []byte("v2")))
	got, ok, err = kv.Get(ctx, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), got)

	existed, err := kv.Erase(ctx, []byte("k"))
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = kv.Erase(ctx, []byte("k"))
	require.NoError(t, err)
	require.False(t, existed)
}

func TestSqliteKeyValueSetAllAndGetAll(t *testing.T) {
	ctx := context.Background()
	kv := openTestKv(t)

	require.NoError(t, kv.SetAll(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
		"c": []byte("3"),
	}))

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
		"c": []byte("3"),
	}, all)
}

func TestSqliteKeyValueEraseBatchReturnsCountRemoved(t *testing.T) {
	ctx := context.Background()
	kv := openTestKv(t)

	require.NoError(t, kv.SetAll(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}))

	n, err := kv.EraseBatch(ctx, [][]byte{[]byte("a"), []byte("b"), []byte("nope")})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestSqliteKeyValueApplyBatchMixesSetsAndErases(t *testing.T) {
	ctx := context.Background()
	kv := openTestKv(t)

	require.NoError(t, kv.SetAll(ctx, map[string][]byte{
		"keep":   []byte("1"),
		"remove": []byte("2"),
	}))

	err := kv.ApplyBatch(ctx, map[string][]byte{
		"keep": []byte("1-updated"),
		"new":  []byte("3"),
	}, [][]byte{[]byte("remove")})
	require.NoError(t, err)

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{
		"keep": []byte("1-updated"),
		"new":  []byte("3"),
	}, all)
}
