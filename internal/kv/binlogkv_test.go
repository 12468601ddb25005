package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/tdcore/internal/binlog"
)

func TestBinlogKeyValueSetNoOpSuppression(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.binlog")

	b, err := OpenBinlogKeyValue(path, binlog.EmptyKey(), nil)
	require.NoError(t, err)
	defer b.Close()

	no, err := b.Set(ctx, "a", "1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), no)

	no, err = b.Set(ctx, "a", "1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), no)

	no, err = b.Set(ctx, "a", "2")
	require.NoError(t, err)
	require.Equal(t, uint64(2), no)
}

func TestBinlogKeyValueSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.binlog")

	b, err := OpenBinlogKeyValue(path, binlog.EmptyKey(), nil)
	require.NoError(t, err)

	_, err = b.Set(ctx, "a", "1")
	require.NoError(t, err)
	_, err = b.Set(ctx, "b", "2")
	require.NoError(t, err)
	_, err = b.Erase(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b2, err := OpenBinlogKeyValue(path, binlog.EmptyKey(), nil)
	require.NoError(t, err)
	defer b2.Close()

	require.Equal(t, "", b2.Get("a"))
	require.Equal(t, "2", b2.Get("b"))
}

func TestBinlogKeyValueEraseBatchOnlyCountsExisting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "erasebatch.binlog")

	b, err := OpenBinlogKeyValue(path, binlog.EmptyKey(), nil)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Set(ctx, "a", "1")
	require.NoError(t, err)
	_, err = b.Set(ctx, "b", "2")
	require.NoError(t, err)

	no, err := b.EraseBatch(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.NotZero(t, no)

	require.Equal(t, "", b.Get("a"))
	require.Equal(t, "", b.Get("b"))

	no, err = b.EraseBatch(ctx, []string{"missing"})
	require.NoError(t, err)
	require.Zero(t, no)
}
