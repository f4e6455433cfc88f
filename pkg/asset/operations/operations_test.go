package operations_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provide-io/wellkit/pkg/asset/operations"
	_ "github.com/provide-io/wellkit/pkg/asset/operations/compress"
)

func TestParseChain(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []uint8
	}{
		{"tar", "tar", []uint8{operations.OP_TAR}},
		{"tar.gz", "tar.gz", []uint8{operations.OP_TAR, operations.OP_GZIP}},
		{"tgz", "TGZ", []uint8{operations.OP_TAR, operations.OP_GZIP}},
		{"tar.bz2", "tar.bz2", []uint8{operations.OP_TAR, operations.OP_BZIP2}},
		{"tbz2", "tbz2", []uint8{operations.OP_TAR, operations.OP_BZIP2}},
		{"pipe", "tar|bzip2", []uint8{operations.OP_TAR, operations.OP_BZIP2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ops, err := operations.ParseChain(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ops)
		})
	}

	_, err := operations.ParseChain("zip")
	assert.Error(t, err)
	_, err = operations.ParseChain("tar|xz")
	assert.Error(t, err)
}

func TestChainName(t *testing.T) {
	assert.Equal(t, "tar.gz", operations.ChainName([]uint8{operations.OP_TAR, operations.OP_GZIP}))
	assert.Equal(t, "tar.bz2", operations.ChainName([]uint8{operations.OP_TAR, operations.OP_BZIP2}))
	assert.Equal(t, "gzip|bzip2", operations.ChainName([]uint8{operations.OP_GZIP, operations.OP_BZIP2}))
}

func TestChainForPath(t *testing.T) {
	ops, err := operations.ChainForPath("/mods/bigger-wells.tar.bz2")
	require.NoError(t, err)
	assert.Equal(t, []uint8{operations.OP_TAR, operations.OP_BZIP2}, ops)

	ops, err = operations.ChainForPath("mod.TGZ")
	require.NoError(t, err)
	assert.Equal(t, []uint8{operations.OP_TAR, operations.OP_GZIP}, ops)

	_, err = operations.ChainForPath("mod.zip")
	assert.Error(t, err)
}

func TestCompressionRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("tile tile tile "), 500)

	for _, op := range []uint8{operations.OP_GZIP, operations.OP_BZIP2} {
		t.Run(operations.GetName(op), func(t *testing.T) {
			out, err := operations.ApplyChain(data, []uint8{op})
			require.NoError(t, err)
			assert.Less(t, len(out), len(data))

			back, err := operations.ReverseChain(out, []uint8{op})
			require.NoError(t, err)
			assert.Equal(t, data, back)
		})
	}

	// Both, reversed in the opposite order
	chain := []uint8{operations.OP_GZIP, operations.OP_BZIP2}
	out, err := operations.ApplyChain(data, chain)
	require.NoError(t, err)
	back, err := operations.ReverseChain(out, chain)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestUnknownOperation(t *testing.T) {
	_, err := operations.Get(0x7F)
	assert.Error(t, err)
	assert.Equal(t, "UNKNOWN_7f", operations.GetName(0x7F))

	_, err = operations.ApplyChain([]byte("x"), []uint8{0x7F})
	assert.Error(t, err)
}
