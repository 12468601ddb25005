package seqkv

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSeqKVSeededScenario reproduces spec.md §8 scenario S2 verbatim.
func TestSeqKVSeededScenario(t *testing.T) {
	kv := New()

	require.EqualValues(t, 1, kv.Set("a", "1"))
	require.EqualValues(t, 0, kv.Set("a", "1"))
	require.EqualValues(t, 2, kv.Set("a", "2"))
	require.EqualValues(t, 0, kv.Erase("b"))
	require.EqualValues(t, 3, kv.Erase("a"))
	require.EqualValues(t, 4, kv.SeqNoNext())
}

func TestSeqKVNoOpSuppression(t *testing.T) {
	kv := New()

	require.EqualValues(t, 1, kv.Set("k", "v"))
	require.EqualValues(t, 0, kv.Set("k", "v"))
	require.EqualValues(t, 2, kv.Set("k", "v2"))
}

func TestSeqKVEraseBatch(t *testing.T) {
	kv := New()
	kv.Set("a", "1")
	kv.Set("b", "2")

	// Absent keys only: no-op.
	require.EqualValues(t, 0, kv.EraseBatch([]string{"missing"}))

	// Mixed: returns the first successful removal's SeqNo, advances by
	// the count that existed.
	before := kv.SeqNoNext()
	first := kv.EraseBatch([]string{"missing", "a", "b"})
	require.EqualValues(t, before, first)
	require.EqualValues(t, before+2, kv.SeqNoNext())
	require.Empty(t, kv.Get("a"))
	require.Empty(t, kv.Get("b"))
}

// TestSeqKVMonotonicity is the property test spec §8.4 requires: successive
// non-zero sequence numbers strictly increase by exactly 1 per successful
// mutation.
func TestSeqKVMonotonicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kv := New()
		oracle := map[string]string{}
		var lastSeq SeqNo

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 50).Draw(t, "ops")
		keys := rapid.SliceOfDistinct(
			rapid.StringMatching(`[a-c]`), func(s string) string { return s },
		).Draw(t, "keys")
		if len(keys) == 0 {
			keys = []string{"a"}
		}

		for i, op := range ops {
			key := keys[i%len(keys)]
			before := kv.SeqNoNext()

			var got SeqNo
			switch op {
			case 0:
				val := rapid.StringMatching(`[xy]`).Draw(t, "val")
				got = kv.Set(key, val)
				existing, existed := oracle[key]
				if existed && existing == val {
					require.Zero(t, got)
				} else {
					oracle[key] = val
				}
			case 1:
				got = kv.Erase(key)
				_, existed := oracle[key]
				delete(oracle, key)
				if !existed {
					require.Zero(t, got)
				}
			case 2:
				got = kv.EraseBatch(keys)
				for _, k := range keys {
					delete(oracle, k)
				}
			}

			if got != 0 {
				require.Equal(t, before, got)
				require.Greater(t, got, lastSeq)
				lastSeq = got
			}
		}

		require.Equal(t, len(oracle), len(kv.GetAll()))
	})
}

func TestTsSeqKeyValueLockPattern(t *testing.T) {
	t.Parallel()

	ts := NewTs()

	no, release := ts.SetAndLock("a", "1")
	require.EqualValues(t, 1, no)
	release()

	require.Equal(t, "1", ts.Get("a"))

	no2, release2 := ts.EraseAndLock("a")
	require.EqualValues(t, 2, no2)
	release2()

	require.Empty(t, ts.Get("a"))
}
