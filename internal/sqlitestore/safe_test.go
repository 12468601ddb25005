package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSqliteConnectionSafeReusesConnectionPerThreadKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safe.db")
	conns := NewSqliteConnectionSafe(path, true, DbKey{})
	t.Cleanup(func() { conns.Close() })

	db1, err := conns.Conn("thread-a")
	require.NoError(t, err)
	db2, err := conns.Conn("thread-a")
	require.NoError(t, err)
	require.Same(t, db1, db2)

	db3, err := conns.Conn("thread-b")
	require.NoError(t, err)
	require.NotSame(t, db1, db3)
}

func TestSqliteKeyValueSafeSerializesWritesAndSharesData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "safekv.db")
	conns := NewSqliteConnectionSafe(path, true, DbKey{})
	safe := NewSqliteKeyValueSafe(conns)
	t.Cleanup(func() { safe.Close() })

	require.NoError(t, safe.Set(ctx, "writer", []byte("k"), []byte("v")))

	// A distinct thread key still sees the write: same underlying file,
	// just a different connection handle.
	got, ok, err := safe.Get(ctx, "reader", []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), got)

	all, err := safe.GetAll(ctx, "reader")
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"k": []byte("v")}, all)

	existed, err := safe.Erase(ctx, "writer", []byte("k"))
	require.NoError(t, err)
	require.True(t, existed)

	n, err := safe.EraseBatch(ctx, "writer", [][]byte{[]byte("k")})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSqliteKeyValueSafeApplyBatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "safebatch.db")
	conns := NewSqliteConnectionSafe(path, true, DbKey{})
	safe := NewSqliteKeyValueSafe(conns)
	t.Cleanup(func() { safe.Close() })

	require.NoError(t, safe.Set(ctx, "w", []byte("keep"), []byte("1")))

	err := safe.ApplyBatch(ctx, "w",
		map[string][]byte{"new": []byte("2")},
		[][]byte{[]byte("keep")},
	)
	require.NoError(t, err)

	all, err := safe.GetAll(ctx, "w")
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"new": []byte("2")}, all)
}
