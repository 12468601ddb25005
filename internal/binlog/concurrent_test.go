package binlog

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/tdcore/internal/baselib/actor"
)

// TestConcurrentBinlogSerializesWriters exercises the property
// ConcurrentBinlog exists for: many goroutines calling AddEvent
// concurrently still produce a replay with exactly that many records, each
// assigned a distinct, monotonically increasing EventID.
func TestConcurrentBinlogSerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.binlog")

	sched := actor.NewScheduler(2)
	defer sched.Finish()

	cb, err := NewConcurrentBinlog(sched, "test-writer", path, nil, EmptyKey(), nil)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := cb.AddEvent(context.Background(), 1, 0, 0, []byte("x"))
			require.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	require.NoError(t, cb.Close(context.Background()))

	seen := make(map[uint64]bool, n)
	for _, id := range ids {
		require.False(t, seen[id], "duplicate event id %d", id)
		seen[id] = true
	}

	var count int
	b, err := Init(path, func(rec Record) error {
		count++
		return nil
	}, EmptyKey(), nil)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, n, count)
}
