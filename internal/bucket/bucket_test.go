package bucket

import (
	"cmp"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recstream/internal/record"
)

func rec(t *testing.T, text string) record.Record {
	t.Helper()
	r, err := record.Parse(text)
	require.NoError(t, err)
	return r
}

func drain(s *Sorter) []string {
	var out []string
	_ = s.Drain(func(r record.Record) error {
		out = append(out, record.Serialize(r))
		return nil
	})
	return out
}

func TestStableNumericSort(t *testing.T) {
	keys, err := ParseSortKeys([]string{"n=numeric"})
	require.NoError(t, err)
	s := NewSorter(keys, 0)

	for _, text := range []string{`{"n":1,"s":"b"}`, `{"n":1,"s":"a"}`, `{"n":0,"s":"z"}`} {
		require.NoError(t, s.Add(rec(t, text)))
	}

	assert.Equal(t, []string{
		`{"n":0,"s":"z"}`,
		`{"n":1,"s":"b"}`,
		`{"n":1,"s":"a"}`,
	}, drain(s))
	assert.Equal(t, 0, s.Len())
}

func TestNumericSortKeepsLargeInts(t *testing.T) {
	keys, err := ParseSortKeys([]string{"n=numeric"})
	require.NoError(t, err)
	s := NewSorter(keys, 0)
	for _, text := range []string{
		`{"n":9007199254740993}`,
		`{"n":9007199254740992.0}`,
		`{"n":9007199254740992}`,
		`{"n":-1.5}`,
	} {
		require.NoError(t, s.Add(rec(t, text)))
	}

	assert.Equal(t, []string{
		`{"n":-1.5}`,
		`{"n":9007199254740992.0}`,
		`{"n":9007199254740992}`,
		`{"n":9007199254740993}`,
	}, drain(s))
}

func TestCompareIntFloat(t *testing.T) {
	assert.Equal(t, 0, compareIntFloat(2, 2.0))
	assert.Equal(t, -1, compareIntFloat(2, 2.5))
	assert.Equal(t, 1, compareIntFloat(-2, -2.5))
	assert.Equal(t, 1, compareIntFloat(9007199254740993, 9007199254740992.0))
	assert.Equal(t, -1, compareIntFloat(1<<62, 1e19))
	assert.Equal(t, 1, compareIntFloat(-1<<62, -1e19))
}

func TestMultiKeySort(t *testing.T) {
	keys, err := ParseSortKeys([]string{"g", "n=-n"})
	require.NoError(t, err)
	s := NewSorter(keys, 0)
	for _, text := range []string{
		`{"g":"b","n":1}`,
		`{"g":"a","n":1}`,
		`{"g":"b","n":5}`,
		`{"g":"a","n":10}`,
		`{"g":"a","n":"2.5"}`,
	} {
		require.NoError(t, s.Add(rec(t, text)))
	}
	assert.Equal(t, []string{
		`{"g":"a","n":10}`,
		`{"g":"a","n":"2.5"}`,
		`{"g":"a","n":1}`,
		`{"g":"b","n":5}`,
		`{"g":"b","n":1}`,
	}, drain(s))
}

func TestLexicalKeysAreNormalized(t *testing.T) {
	keys, err := ParseSortKeys([]string{"w"})
	require.NoError(t, err)
	s := NewSorter(keys, 0)

	// precomposed and decomposed e-acute tie, so arrival order holds
	require.NoError(t, s.Add(rec(t, `{"w":"\u00e9","i":1}`)))
	require.NoError(t, s.Add(rec(t, `{"w":"a","i":2}`)))
	require.NoError(t, s.Add(rec(t, `{"w":"e\u0301","i":3}`)))

	out := drain(s)
	require.Len(t, out, 3)
	assert.Equal(t, `{"i":2,"w":"a"}`, out[0])
	assert.Contains(t, out[1], `"i":1`)
	assert.Contains(t, out[2], `"i":3`)
}

func TestTopKKeepsSmallest(t *testing.T) {
	const n, k = 200, 7
	keys, err := ParseSortKeys([]string{"n=n"})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		vals := rng.Perm(n)
		s := NewSorter(keys, k)
		for _, v := range vals {
			require.NoError(t, s.Add(record.Hash(record.P("n", record.Int(int64(v))))))
			require.LessOrEqual(t, s.Len(), k)
		}

		var got []int64
		_ = s.Drain(func(r record.Record) error {
			got = append(got, r.Field("n").IntValue())
			return nil
		})
		assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6}, got)
	}
}

func TestTopKReverseKeepsLargest(t *testing.T) {
	keys, err := ParseSortKeys([]string{"n=-n"})
	require.NoError(t, err)
	s := NewSorter(keys, 2)
	for _, v := range []int64{5, 9, 1, 7} {
		require.NoError(t, s.Add(record.Hash(record.P("n", record.Int(v)))))
	}
	assert.Equal(t, []string{`{"n":9}`, `{"n":7}`}, drain(s))
}

func TestNumericKeyRejectsText(t *testing.T) {
	keys, err := ParseSortKeys([]string{"n=n"})
	require.NoError(t, err)
	s := NewSorter(keys, 0)

	err = s.Add(rec(t, `{"n":"abc"}`))
	assert.True(t, record.IsTypeError(err))
	assert.Equal(t, 0, s.Len())

	// null coerces to zero
	require.NoError(t, s.Add(rec(t, `{}`)))
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("a/#0=-numeric")
	require.NoError(t, err)
	assert.Equal(t, Numeric, k.Type)
	assert.True(t, k.Reverse)
	assert.Equal(t, "a/#0=-numeric", k.String())

	k, err = ParseSortKey("x")
	require.NoError(t, err)
	assert.Equal(t, Lexical, k.Type)
	assert.False(t, k.Reverse)

	for _, bad := range []string{"", "=n", "x=weird", "#z=n"} {
		_, err := ParseSortKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestRemoveFromEmpty(t *testing.T) {
	b := Chain(nil)()
	_, ok := b.Remove(Front)
	assert.False(t, ok)

	kb := Keyed(func(i int) int { return i }, cmp.Compare[int], Terminal[int]())()
	_, ok = kb.Remove(Back)
	assert.False(t, ok)
	assert.True(t, kb.Empty())
}

func TestKeyBucketEvictsEmptyKeys(t *testing.T) {
	kb := Keyed(func(i int) int { return i / 10 }, cmp.Compare[int], Terminal[int]())().(*keyBucket[int, int])
	for _, v := range []int{11, 3, 12, 25} {
		kb.Add(v)
	}
	assert.Equal(t, 3, kb.tree.Len())

	v, ok := kb.Remove(Front)
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, kb.tree.Len())

	v, _ = kb.Remove(Back)
	assert.Equal(t, 25, v)
	v, _ = kb.Remove(Back)
	assert.Equal(t, 12, v)
	v, _ = kb.Remove(Back)
	assert.Equal(t, 11, v)
	assert.True(t, kb.Empty())
	assert.Equal(t, 0, kb.tree.Len())
}

func TestDequeBothEnds(t *testing.T) {
	d := &deque[int]{}
	var want []int
	for i := 0; i < 100; i++ {
		d.Add(i)
		want = append(want, i)
	}
	var got []int
	for i := 0; i < 80; i++ {
		v, ok := d.Remove(Front)
		require.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, want[:80], got)

	for i := 100; i < 110; i++ {
		d.Add(i)
	}
	var tail []int
	for !d.Empty() {
		v, _ := d.Remove(Back)
		tail = append(tail, v)
	}
	slices.Reverse(tail)
	assert.Equal(t, append(want[80:], 100, 101, 102, 103, 104, 105, 106, 107, 108, 109), tail)
}
