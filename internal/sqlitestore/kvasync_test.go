package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/tdcore/internal/baselib/actor"
)

func TestSqliteKeyValueAsyncCoalescesWritesIntoOneBatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "async.db")

	conns := NewSqliteConnectionSafe(path, true, DbKey{})
	safe := NewSqliteKeyValueSafe(conns)
	t.Cleanup(func() { safe.Close() })

	sched := actor.NewScheduler(2)
	defer sched.Finish()

	a := NewSqliteKeyValueAsync(sched, "kv-writer", safe, "writer",
		WithAsyncWindow(10*time.Millisecond))

	f1 := a.Set(ctx, []byte("a"), []byte("1"))
	f2 := a.Set(ctx, []byte("b"), []byte("2"))
	f3 := a.Erase(ctx, []byte("a"))

	opErr, err := f1.Await(ctx).Unpack()
	require.NoError(t, err)
	require.NoError(t, opErr)

	opErr, err = f2.Await(ctx).Unpack()
	require.NoError(t, err)
	require.NoError(t, opErr)

	opErr, err = f3.Await(ctx).Unpack()
	require.NoError(t, err)
	require.NoError(t, opErr)

	all, err := safe.GetAll(ctx, "writer")
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"b": []byte("2")}, all)
}

func TestSqliteKeyValueAsyncCloseFlushesPending(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "async-close.db")

	conns := NewSqliteConnectionSafe(path, true, DbKey{})
	safe := NewSqliteKeyValueSafe(conns)
	t.Cleanup(func() { safe.Close() })

	sched := actor.NewScheduler(2)
	defer sched.Finish()

	a := NewSqliteKeyValueAsync(sched, "kv-writer-close", safe, "writer",
		WithAsyncWindow(time.Hour))

	f := a.Set(ctx, []byte("x"), []byte("y"))
	require.NoError(t, a.Close(ctx))

	opErr, err := f.Await(ctx).Unpack()
	require.NoError(t, err)
	require.NoError(t, opErr)

	got, ok, err := safe.Get(ctx, "writer", []byte("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("y"), got)
}
