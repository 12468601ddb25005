package kv

import (
	"context"
	"path/filepath"
	"testing"

	"pgregory.net/rapid"

	"github.com/roasbeef/tdcore/internal/binlog"
)

// kvOp is one operation in a generated sequence: set, erase, or erase_batch
// against a tiny fixed key alphabet, chosen so collisions (no-ops, erasing
// an absent key) are common and exercised.
type kvOp struct {
	kind  string // "set", "erase", "erase_batch"
	keys  []string
	value string
}

func genKvOp(t *rapid.T) kvOp {
	alphabet := []string{"a", "b", "c"}
	kind := rapid.SampledFrom([]string{"set", "erase", "erase_batch"}).Draw(t, "kind")

	switch kind {
	case "set":
		return kvOp{
			kind:  kind,
			keys:  []string{rapid.SampledFrom(alphabet).Draw(t, "key")},
			value: rapid.SampledFrom([]string{"1", "2", ""}).Draw(t, "value"),
		}
	case "erase":
		return kvOp{kind: kind, keys: []string{rapid.SampledFrom(alphabet).Draw(t, "key")}}
	default:
		n := rapid.IntRange(0, len(alphabet)).Draw(t, "n")
		keys := make([]string, n)
		for i := range keys {
			keys[i] = rapid.SampledFrom(alphabet).Draw(t, "batchkey")
		}
		return kvOp{kind: kind, keys: keys}
	}
}

// TestKVEquivalence is spec §8.6: BinlogKeyValue and the SQL-backed
// PersistentKV must produce identical get results for any sequence of
// set/erase/erase_batch operations, checked against a plain Go map oracle.
func TestKVEquivalence(t *testing.T) {
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		dir := t.TempDir()

		blog, err := OpenBinlogKeyValue(filepath.Join(dir, "oracle.binlog"), binlog.EmptyKey(), nil)
		if err != nil {
			t.Fatal(err)
		}
		defer blog.Close()

		sqlkv, err := OpenSqliteKeyValue(filepath.Join(dir, "oracle.db"), true, binlog.EmptyKey(), "main")
		if err != nil {
			t.Fatal(err)
		}
		defer sqlkv.Close()

		oracle := make(map[string]string)

		n := rapid.IntRange(0, 30).Draw(t, "opcount")
		for i := 0; i < n; i++ {
			op := genKvOp(t)

			switch op.kind {
			case "set":
				key, value := op.keys[0], op.value
				oracle[key] = value
				if _, err := blog.Set(ctx, key, value); err != nil {
					t.Fatal(err)
				}
				if _, err := sqlkv.Set(ctx, key, value); err != nil {
					t.Fatal(err)
				}

			case "erase":
				key := op.keys[0]
				delete(oracle, key)
				if _, err := blog.Erase(ctx, key); err != nil {
					t.Fatal(err)
				}
				if _, err := sqlkv.Erase(ctx, key); err != nil {
					t.Fatal(err)
				}

			case "erase_batch":
				for _, k := range op.keys {
					delete(oracle, k)
				}
				if _, err := blog.EraseBatch(ctx, op.keys); err != nil {
					t.Fatal(err)
				}
				if _, err := sqlkv.EraseBatch(ctx, op.keys); err != nil {
					t.Fatal(err)
				}
			}
		}

		for _, key := range []string{"a", "b", "c"} {
			want := oracle[key]
			if got := blog.Get(key); got != want {
				t.Fatalf("binlog kv mismatch for %q: got %q want %q", key, got, want)
			}
			if got := sqlkv.Get(key); got != want {
				t.Fatalf("sqlite kv mismatch for %q: got %q want %q", key, got, want)
			}
		}
	})
}
