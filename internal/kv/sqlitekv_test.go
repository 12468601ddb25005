package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/tdcore/internal/binlog"
)

func TestSqliteKeyValueSetNoOpAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSqliteKeyValue(path, true, binlog.EmptyKey(), "main")
	require.NoError(t, err)

	no, err := s.Set(ctx, "a", "1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), no)

	no, err = s.Set(ctx, "a", "1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), no)

	_, err = s.Set(ctx, "b", "2")
	require.NoError(t, err)
	_, err = s.Erase(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := OpenSqliteKeyValue(path, false, binlog.EmptyKey(), "main")
	require.NoError(t, err)
	defer s2.Close()

	require.Equal(t, "", s2.Get("a"))
	require.Equal(t, "2", s2.Get("b"))
}

func TestSqliteKeyValueEraseBatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "erasebatch.db")

	s, err := OpenSqliteKeyValue(path, true, binlog.EmptyKey(), "main")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Set(ctx, "a", "1")
	require.NoError(t, err)
	_, err = s.Set(ctx, "b", "2")
	require.NoError(t, err)

	no, err := s.EraseBatch(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.NotZero(t, no)

	require.Equal(t, "", s.Get("a"))
	require.Equal(t, "", s.Get("b"))
}
