package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/tdcore/internal/binlog"
)

func TestSqliteDbOpenCreatesSchemaAndTracksUserVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	db, err := OpenWithKey(path, true, DbKey{})
	require.NoError(t, err)
	defer db.Close()

	v, err := db.UserVersion()
	require.NoError(t, err)
	require.Equal(t, int32(1), v, "golang-migrate should have applied 000001_init and bumped user_version to it")

	require.NoError(t, db.SetUserVersion(42))
	v, err = db.UserVersion()
	require.NoError(t, err)
	require.Equal(t, int32(42), v)

	require.NoError(t, db.Exec(context.Background(), "INSERT INTO kv (k, v) VALUES (?, ?)", []byte("k"), []byte("v")))
}

func TestSqliteDbOpenWithoutAllowCreateFailsOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	_, err := OpenWithKey(path, false, DbKey{})
	require.Error(t, err)
}

func TestSqliteDbGetStatementIsPooled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pooled.db")

	db, err := OpenWithKey(path, true, DbKey{})
	require.NoError(t, err)
	defer db.Close()

	s1, err := db.GetStatement("SELECT v FROM kv WHERE k = ?")
	require.NoError(t, err)
	s2, err := db.GetStatement("SELECT v FROM kv WHERE k = ?")
	require.NoError(t, err)
	require.Same(t, s1, s2)
}

func TestChangeKeyPreservesDataAndUserVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rekey.db")

	db, err := OpenWithKey(path, true, DbKey{})
	require.NoError(t, err)
	require.NoError(t, db.SetUserVersion(7))
	require.NoError(t, db.Exec(context.Background(), "INSERT INTO kv (k, v) VALUES (?, ?)", []byte("a"), []byte("1")))
	require.NoError(t, db.Close())

	newKey := binlog.RawKeyFrom([32]byte{9, 9, 9})
	rekeyed, err := ChangeKey(path, false, newKey, DbKey{})
	require.NoError(t, err)
	defer rekeyed.Close()

	v, err := rekeyed.UserVersion()
	require.NoError(t, err)
	require.Equal(t, int32(7), v)

	kv := NewSqliteKeyValue(rekeyed)
	got, ok, err := kv.Get(context.Background(), []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), got)
}

func TestDestroyRemovesStoreAndSidecars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.db")

	db, err := OpenWithKey(path, true, DbKey{})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, Destroy(path))
	require.NoError(t, Destroy(path), "Destroy must be idempotent on an already-gone store")
}
