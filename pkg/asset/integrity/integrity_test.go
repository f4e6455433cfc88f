package integrity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumKnownValues(t *testing.T) {
	assert.Equal(t, Seed, Sum(nil))

	// One step by hand: (seed ^ 'a') * multiplier, 64-bit wraparound
	want := (Seed ^ uint64('a')) * Multiplier
	assert.Equal(t, want, Sum([]byte("a")))

	// Order matters
	assert.NotEqual(t, Sum([]byte("ab")), Sum([]byte("ba")))
}

func TestStreamingMatchesSum(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	h := New()
	_, _ = h.Write(data[:10])
	_, _ = h.Write(data[10:])
	assert.Equal(t, Sum(data), h.Sum64())
	assert.Len(t, h.Sum(nil), 8)

	h.Reset()
	assert.Equal(t, Seed, h.Sum64())
}

func TestFormatParse(t *testing.T) {
	h := Sum([]byte("asset"))
	s := Format(h)
	assert.Regexp(t, `^fnv:[0-9a-f]{16}$`, s)

	back, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, h, back)

	ok, err := Verify([]byte("asset"), s)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Parse("fnv:xyz")
	assert.Error(t, err)
}

func TestPaddedEqual(t *testing.T) {
	testCases := []struct {
		name    string
		encoded []byte
		raw     []byte
		want    bool
	}{
		{"identical", []byte{1, 2, 3}, []byte{1, 2, 3}, true},
		{"zero padding", []byte{1, 2, 3}, []byte{1, 2, 3, 0, 0}, true},
		{"non-zero tail", []byte{1, 2, 3}, []byte{1, 2, 3, 0, 9}, false},
		{"raw shorter", []byte{1, 2, 3}, []byte{1, 2}, false},
		{"prefix differs", []byte{1, 2, 3}, []byte{1, 9, 3}, false},
		{"both empty", nil, nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PaddedEqual(tc.encoded, tc.raw))
		})
	}
}

func TestTableRoundTripThroughFile(t *testing.T) {
	src := map[uint32]uint64{1: 10, 47: Sum([]byte("sprite")), 300: Sum([]byte("map"))}
	table := NewTable("reference", src)

	// The table keeps its own copy
	src[1] = 99
	h, ok := table.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, uint64(10), h)

	path := filepath.Join(t.TempDir(), "pinned.cbor")
	require.NoError(t, table.Save(path))

	loaded, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "reference", loaded.Source())
	assert.Equal(t, []uint32{1, 47, 300}, loaded.IDs())
	for _, id := range table.IDs() {
		want, _ := table.Lookup(id)
		got, ok := loaded.Lookup(id)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	_, ok := table.Lookup(3)
	assert.False(t, ok)
	assert.Zero(t, table.Len())
}

func TestCollisions(t *testing.T) {
	table := NewTable("", map[uint32]uint64{1: 5, 2: 6, 3: 5})
	assert.Equal(t, [][]uint32{{1, 3}}, table.Collisions())
}
