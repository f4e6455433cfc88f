package store

import (
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provide-io/wellkit/internal/testimage"
	"github.com/provide-io/wellkit/internal/workenv"
	"github.com/provide-io/wellkit/pkg/asset/cipher"
	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
	"github.com/provide-io/wellkit/pkg/asset/formats"
	"github.com/provide-io/wellkit/pkg/asset/integrity"
	"github.com/provide-io/wellkit/pkg/asset/table"
)

const encryptedFlag = 0x40

// Fixture asset ids
const (
	idText = iota
	idPNG
	idMap
	idSprite
	idUV
	idAmbient
	idShader
	fixtureCount
)

func testLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "store_test",
		Level: hclog.Trace,
	})
}

type fixture struct {
	image  *testimage.Image
	keys   cipher.KeySet
	layout table.Layout
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 2, color.RGBA{R: 200, A: 255})
	path := filepath.Join(t.TempDir(), "tile.png")
	require.NoError(t, imgio.Save(path, img, imgio.PNGEncoder()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func testMap(t *testing.T, coords ...[2]uint8) *formats.Map {
	t.Helper()
	rooms := make([]formats.Room, len(coords))
	for i, c := range coords {
		rooms[i].X, rooms[i].Y = c[0], c[1]
		rooms[i].Tiles[formats.LayerForeground][0][0] = formats.MapTile{ID: uint16(i + 1)}
	}
	m, err := formats.NewMap(0, 0, rooms)
	require.NoError(t, err)
	return m
}

func mustSave(t *testing.T, c codec) []byte {
	t.Helper()
	data, err := c.Save()
	require.NoError(t, err)
	return data
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rng := rand.New(rand.NewSource(11))
	keys := make(cipher.KeySet, 3)
	for i := range keys {
		rng.Read(keys[i][:])
	}

	engine := cipher.NewEngine(nil).WithRandom(rng)
	mapData := mustSave(t, testMap(t, [2]uint8{0, 0}, [2]uint8{1, 0}))
	encMap, err := engine.Encrypt(mapData, keys[1])
	require.NoError(t, err)

	sprite := &formats.Sprite{
		CompositeWidth:   32,
		CompositeHeight:  32,
		CompositionCount: 2,
		Animations:       []formats.Animation{{Start: 0, End: 1, Delay: 4}},
		Compositions:     []uint8{0, formats.EmptyComposition},
		SubSprites:       []formats.SubSprite{{Width: 32, Height: 32}},
		Layers:           []formats.SpriteLayer{{Visible: 1}},
	}
	uv := &formats.UVAtlas{Entries: []formats.UVEntry{
		{X: 0, Y: 0, Width: 8, Height: 8, Flags: formats.UVCollidesUp},
		{X: 8, Y: 0, Width: 8, Height: 8, Flags: formats.UVContiguous},
	}}
	ambient := &formats.AmbientTable{Entries: []formats.Ambient{
		{ForegroundMultiplier: 1, BackgroundMultiplier: 0.5, Color: formats.RGBA{R: 1, G: 2, B: 3, A: 4}},
	}}

	// Incidental trailing padding must not trigger a warning
	uvData := append(mustSave(t, uv), 0, 0, 0, 0)

	b := testimage.New()
	b.Add(byte(table.KindText), []byte("credits"))
	b.Add(byte(table.KindPNG), testPNG(t))
	b.Add(byte(table.KindMap)|encryptedFlag, encMap)
	b.Add(byte(table.KindSprite), mustSave(t, sprite))
	b.Add(byte(table.KindUVAtlas), uvData)
	b.Add(byte(table.KindAmbient), mustSave(t, ambient))
	b.Add(byte(table.KindShader), []byte("void main() {}"))
	img := b.Build()

	return &fixture{
		image:  img,
		keys:   keys,
		layout: table.Layout{TablePointer: img.TablePointer, Count: fixtureCount},
	}
}

func (f *fixture) open(t *testing.T, pinned *integrity.Table) *Store {
	t.Helper()
	s := New(Options{
		Layout:  f.layout,
		Keys:    f.keys,
		Pinned:  pinned,
		Logger:  testLogger(),
		Version: "test",
	})
	require.NoError(t, s.LoadFromImage(f.image.Bytes))
	return s
}

func TestLoadFromImage(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, nil)

	assert.Equal(t, Loaded, s.State())
	assert.Empty(t, s.Warnings())
	assert.Equal(t, fixtureCount, s.Count())
	assert.Equal(t, integrity.Format(integrity.Sum(f.image.Bytes)), s.ImageChecksum())

	text, err := s.GetAsset(idText)
	require.NoError(t, err)
	assert.Equal(t, []byte("credits"), text)

	// Decrypted with the second key; padding is gone after re-encoding
	m, err := s.Map(idMap)
	require.NoError(t, err)
	assert.Equal(t, 2, m.RoomCount())
	mapBytes, err := s.GetAsset(idMap)
	require.NoError(t, err)
	assert.Len(t, mapBytes, formats.MapHeaderSize+2*formats.RoomRecordSize)

	sprite, err := s.Sprite(idSprite)
	require.NoError(t, err)
	assert.Equal(t, uint16(32), sprite.CompositeWidth)

	uv, err := s.UVAtlas(idUV)
	require.NoError(t, err)
	assert.Len(t, uv.Entries, 2)

	ambient, err := s.Ambient(idAmbient)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), ambient.Entries[0].BackgroundMultiplier)

	assert.Equal(t, []int{idMap}, s.IDsOfKind(table.KindMap))
	assert.Equal(t, []int{idShader}, s.IDsOfKind(table.KindShader))

	d, err := s.Descriptor(idMap)
	require.NoError(t, err)
	assert.True(t, d.Encrypted())

	_, err = s.Map(idSprite)
	assert.ErrorIs(t, err, asseterrors.ErrWrongKind)
	_, err = s.Sprite(idText)
	assert.ErrorIs(t, err, asseterrors.ErrWrongKind)
	_, err = s.GetAsset(fixtureCount)
	assert.ErrorIs(t, err, asseterrors.ErrInvalidAssetID)

	assert.ErrorIs(t, s.LoadFromImage(f.image.Bytes), asseterrors.ErrAlreadyLoaded)
}

func TestFullPipeline(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(t.TempDir(), "overlay")

	s := f.open(t, nil)

	// Nothing edited, nothing written
	written, err := s.PersistToFolder(dir)
	require.NoError(t, err)
	assert.Empty(t, written)

	m, err := s.Map(idMap)
	require.NoError(t, err)
	edit := formats.MapTile{ID: 77, Flags: formats.TileRotate90}
	require.True(t, m.SetTile(formats.LayerBackground, 45, 3, edit))

	written, err = s.PersistToFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{idMap}, written)
	assert.FileExists(t, filepath.Join(dir, "2.map"))
	assert.FileExists(t, filepath.Join(dir, workenv.MarkerName))

	written, err = s.PersistToFolder(dir)
	require.NoError(t, err)
	assert.Empty(t, written, "second persist must not rewrite")

	// Fresh session: overlay then persist writes nothing
	s2 := f.open(t, nil)
	applied, err := s2.OverlayFromFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{idMap}, applied)
	assert.Empty(t, s2.Warnings())

	m2, err := s2.Map(idMap)
	require.NoError(t, err)
	tile, ok := m2.Tile(formats.LayerBackground, 45, 3)
	require.True(t, ok)
	assert.Equal(t, edit, tile)

	written, err = s2.PersistToFolder(dir)
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestPersistAfterRevert(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	s := f.open(t, nil)

	uv, err := s.UVAtlas(idUV)
	require.NoError(t, err)
	before := uv.Entries[0].Flags

	uv.Entries[0].Flags = before.With(formats.UVHidden, true)
	written, err := s.PersistToFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{idUV}, written)

	// The folder holds the edit, so restoring the loaded value is written too
	uv.Entries[0].Flags = before
	written, err = s.PersistToFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{idUV}, written)
}

func TestMismatchedMapOverlay(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	other := testMap(t, [2]uint8{0, 0}, [2]uint8{1, 0}, [2]uint8{2, 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.map"), mustSave(t, other), 0644))

	s := f.open(t, nil)
	applied, err := s.OverlayFromFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{idMap}, applied)

	warnings := s.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, idMap, warnings[0].ID)
	assert.Equal(t, table.KindMap, warnings[0].Kind)
	assert.Contains(t, warnings[0].Message, "room count 3")

	m, err := s.Map(idMap)
	require.NoError(t, err)
	assert.Equal(t, 3, m.RoomCount())
}

func TestMovedRoomsOverlay(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	moved := testMap(t, [2]uint8{0, 0}, [2]uint8{0, 1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.map"), mustSave(t, moved), 0644))

	s := f.open(t, nil)
	_, err := s.OverlayFromFolder(dir)
	require.NoError(t, err)

	warnings := s.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "room layout")
}

func TestOverlayRejectsBadFiles(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "3.sprite"), []byte("not a sprite"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.png"), []byte("not a png"), 0644))
	// Shader files are never overlaid
	require.NoError(t, os.WriteFile(filepath.Join(dir, "6.bin"), []byte("ignored"), 0644))

	s := f.open(t, nil)
	before, err := s.GetAsset(idSprite)
	require.NoError(t, err)

	applied, err := s.OverlayFromFolder(dir)
	require.NoError(t, err)
	assert.Empty(t, applied)

	warnings := s.Warnings()
	require.Len(t, warnings, 2)
	ids := []int{warnings[0].ID, warnings[1].ID}
	assert.ElementsMatch(t, []int{idPNG, idSprite}, ids)

	after, err := s.GetAsset(idSprite)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	shader, err := s.GetAsset(idShader)
	require.NoError(t, err)
	assert.Equal(t, []byte("void main() {}"), shader)
}

func TestPNGOverlay(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, imgio.Save(filepath.Join(dir, "1.png"), img, imgio.PNGEncoder()))

	s := f.open(t, nil)
	applied, err := s.OverlayFromFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{idPNG}, applied)
	assert.Empty(t, s.Warnings())

	data, err := os.ReadFile(filepath.Join(dir, "1.png"))
	require.NoError(t, err)
	got, err := s.GetAsset(idPNG)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestOverlayMarkerMismatch(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, workenv.MarkWritten(dir, "test", "fnv:0000000000000001", nil))

	s := f.open(t, nil)
	_, err := s.OverlayFromFolder(dir)
	require.NoError(t, err)

	warnings := s.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, -1, warnings[0].ID)
	assert.Contains(t, warnings[0].String(), "fnv:0000000000000001")
}

func TestOverlayMissingFolder(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, nil)
	_, err := s.OverlayFromFolder(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestLoadFailures(t *testing.T) {
	t.Run("not an executable", func(t *testing.T) {
		s := New(Options{Logger: testLogger()})
		err := s.LoadFromImage([]byte("plain text file"))
		assert.ErrorIs(t, err, asseterrors.ErrInvalidContainer)
		assert.Equal(t, Failed, s.State())

		_, err = s.GetAsset(0)
		assert.ErrorIs(t, err, asseterrors.ErrNotLoaded)
		_, err = s.PersistToFolder(t.TempDir())
		assert.ErrorIs(t, err, asseterrors.ErrNotLoaded)
		_, err = s.OverlayFromFolder(t.TempDir())
		assert.ErrorIs(t, err, asseterrors.ErrNotLoaded)
		assert.ErrorIs(t, s.LoadFromImage(nil), asseterrors.ErrAlreadyLoaded)
	})

	t.Run("missing rdata", func(t *testing.T) {
		b := testimage.New()
		b.Add(byte(table.KindText), []byte("x"))
		b.OmitRData = true
		img := b.Build()

		s := New(Options{Layout: table.Layout{TablePointer: img.TablePointer, Count: 1}})
		assert.ErrorIs(t, s.LoadFromImage(img.Bytes), asseterrors.ErrSectionMissing)
		assert.Equal(t, Failed, s.State())
	})

	t.Run("corrupt map", func(t *testing.T) {
		b := testimage.New()
		b.Add(byte(table.KindMap), []byte("definitely not a map header"))
		img := b.Build()

		s := New(Options{Layout: table.Layout{TablePointer: img.TablePointer, Count: 1}})
		assert.ErrorIs(t, s.LoadFromImage(img.Bytes), asseterrors.ErrInvalidMagic)
		assert.Equal(t, Failed, s.State())
	})

	t.Run("not loaded", func(t *testing.T) {
		s := New(Options{})
		assert.Equal(t, Unloaded, s.State())
		_, err := s.Map(0)
		assert.ErrorIs(t, err, asseterrors.ErrNotLoaded)
	})
}

func TestPinnedHashes(t *testing.T) {
	f := newFixture(t)

	pinned, err := f.open(t, nil).Hashes()
	require.NoError(t, err)
	assert.Equal(t, fixtureCount, pinned.Len())

	s := f.open(t, pinned)
	assert.Empty(t, s.Warnings())

	// A pin taken from a different build flags the asset and makes it
	// eligible for writing
	hashes := make(map[uint32]uint64)
	for _, id := range pinned.IDs() {
		h, _ := pinned.Lookup(id)
		hashes[id] = h
	}
	hashes[idSprite] ^= 1
	s = f.open(t, integrity.NewTable("other", hashes))

	warnings := s.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, idSprite, warnings[0].ID)

	written, err := s.PersistToFolder(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []int{idSprite}, written)
}

func TestExtractAll(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, nil)
	dir := t.TempDir()

	n, err := s.ExtractAll(dir, true)
	require.NoError(t, err)
	assert.Equal(t, fixtureCount, n)

	for _, name := range []string{"0.bin", "1.png", "2.map", "3.sprite", "4.uvs", "5.ambient", "6.bin"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	img, err := imgio.Open(filepath.Join(dir, "1.png"))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	shader, err := os.ReadFile(filepath.Join(dir, "6.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte("void main() {}"), shader)
}
