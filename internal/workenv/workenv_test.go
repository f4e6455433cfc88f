package workenv

import (
	"os"
	"path/filepath"
	"testing"

	opt "github.com/repeale/fp-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOverlayRootFromEnv(t *testing.T) {
	t.Setenv("WELLKIT_OVERLAY_DIR", "/tmp/overlays")
	assert.Equal(t, "/tmp/overlays", GetOverlayRoot())
}

func TestGetOverlayPath(t *testing.T) {
	testCases := []struct {
		name     string
		checksum string
		want     string
	}{
		{"prefixed", "fnv:0123456789abcdef", "01234567"},
		{"bare", "89abcdef01234567", "89abcdef"},
		{"short", "abc", "abc"},
		{"empty", "", "default"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, filepath.Join("/root", tc.want), GetOverlayPath("/root", tc.checksum))
		})
	}
}

func TestMarkerLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "overlay")
	require.NoError(t, CreateOverlay(dir))

	marker, err := ReadMarker(dir)
	require.NoError(t, err)
	assert.True(t, opt.IsNone(marker))
	assert.True(t, Matches(dir, "fnv:1"))

	require.NoError(t, MarkWritten(dir, "1.2.3", "fnv:1", []int{4, 9}))

	marker, err = ReadMarker(dir)
	require.NoError(t, err)
	require.True(t, opt.IsSome(marker))
	assert.Equal(t, "wellkit", marker.Value.Tool)
	assert.Equal(t, "1.2.3", marker.Value.Version)
	assert.Equal(t, []int{4, 9}, marker.Value.Written)
	assert.False(t, marker.Value.Timestamp.IsZero())

	assert.True(t, Matches(dir, "fnv:1"))
	assert.False(t, Matches(dir, "fnv:2"))
}

func TestCorruptMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerName), []byte("{"), 0644))

	_, err := ReadMarker(dir)
	assert.Error(t, err)
	assert.False(t, Matches(dir, "fnv:1"))
}
