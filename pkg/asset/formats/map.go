//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package formats

import (
	"fmt"
	"math"

	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
)

const (
	MapMagic  uint32 = 0xF00DCAFE
	MapMagic2 uint16 = 0xF0F0

	RoomWidth  = 40
	RoomHeight = 22

	LayerForeground = 0
	LayerBackground = 1
	RoomLayers      = 2

	MapHeaderSize  = 12
	RoomRecordSize = 8 + RoomLayers*RoomHeight*RoomWidth*4
)

// TileFlags are the orientation bits of a tile. Bits 4-7 are kept as read.
type TileFlags uint8

const (
	TileMirrorH TileFlags = 1 << iota
	TileMirrorV
	TileRotate90
	TileRotate180
)

// MapTile is one 4-byte cell of a room layer.
type MapTile struct {
	ID    uint16
	Param uint8
	Flags TileFlags
}

// Room is one screen of a map. Tiles are indexed [layer][row][column].
type Room struct {
	X          uint8
	Y          uint8
	Background uint8
	WaterLevel uint8
	Lighting   uint8
	Reserved   [3]byte
	Tiles      [RoomLayers][RoomHeight][RoomWidth]MapTile
}

type mapHeader struct {
	Magic  uint32
	Rooms  uint32
	WrapX  uint8
	WrapY  uint8
	Magic2 uint16
}

type roomCoord struct{ x, y uint8 }

// Map is an ordered list of rooms plus a coordinate index. Tiles are
// edited through SetTile; the room list itself is fixed after parse.
type Map struct {
	WrapX uint8
	WrapY uint8

	rooms []Room
	index map[roomCoord]int
}

// NewMap builds a map from rooms, rejecting duplicate coordinates.
func NewMap(wrapX, wrapY uint8, rooms []Room) (*Map, error) {
	m := &Map{
		WrapX: wrapX,
		WrapY: wrapY,
		rooms: make([]Room, len(rooms)),
		index: make(map[roomCoord]int, len(rooms)),
	}
	copy(m.rooms, rooms)
	for i := range m.rooms {
		c := roomCoord{m.rooms[i].X, m.rooms[i].Y}
		if prev, dup := m.index[c]; dup {
			return nil, fmt.Errorf("%w: rooms %d and %d at (%d, %d)",
				asseterrors.ErrDuplicateRoom, prev, i, c.x, c.y)
		}
		m.index[c] = i
	}
	return m, nil
}

// ParseMap decodes a map asset.
func ParseMap(data []byte) (*Map, error) {
	p := Buffer(data)

	var hdr mapHeader
	if err := p.Get(&hdr); err != nil {
		return nil, fmt.Errorf("map header: %w", err)
	}
	if err := checkMagic("map", hdr.Magic, MapMagic); err != nil {
		return nil, err
	}
	if hdr.Magic2 != MapMagic2 {
		return nil, fmt.Errorf("%w: map trailer magic 0x%04x, want 0x%04x",
			asseterrors.ErrInvalidMagic, hdr.Magic2, MapMagic2)
	}
	if err := p.NeedRecords(uint64(hdr.Rooms), RoomRecordSize, "room"); err != nil {
		return nil, err
	}

	rooms := make([]Room, hdr.Rooms)
	if err := p.Get(rooms); err != nil {
		return nil, fmt.Errorf("map rooms: %w", err)
	}

	return NewMap(hdr.WrapX, hdr.WrapY, rooms)
}

// Save encodes the map.
func (m *Map) Save() ([]byte, error) {
	if uint64(len(m.rooms)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d rooms", asseterrors.ErrInvalidLayout, len(m.rooms))
	}
	p := make(Buffer, 0, MapHeaderSize+len(m.rooms)*RoomRecordSize)
	hdr := mapHeader{
		Magic:  MapMagic,
		Rooms:  uint32(len(m.rooms)),
		WrapX:  m.WrapX,
		WrapY:  m.WrapY,
		Magic2: MapMagic2,
	}
	if err := p.Put(&hdr, m.rooms); err != nil {
		return nil, err
	}
	return p, nil
}

// RoomCount is the number of rooms.
func (m *Map) RoomCount() int {
	return len(m.rooms)
}

// Room returns a copy of room i.
func (m *Map) Room(i int) (Room, bool) {
	if i < 0 || i >= len(m.rooms) {
		return Room{}, false
	}
	return m.rooms[i], true
}

// RoomAt returns the index of the room at grid coordinate (x, y).
func (m *Map) RoomAt(x, y uint8) (int, bool) {
	i, ok := m.index[roomCoord{x, y}]
	return i, ok
}

// locate maps world tile coordinates to a room and an in-room cell.
func (m *Map) locate(layer, tx, ty int) (room, row, col int, ok bool) {
	if layer < 0 || layer >= RoomLayers || tx < 0 || ty < 0 {
		return 0, 0, 0, false
	}
	rx, ry := tx/RoomWidth, ty/RoomHeight
	if rx > math.MaxUint8 || ry > math.MaxUint8 {
		return 0, 0, 0, false
	}
	room, ok = m.index[roomCoord{uint8(rx), uint8(ry)}]
	return room, ty % RoomHeight, tx % RoomWidth, ok
}

// Tile returns the tile at world tile coordinate (tx, ty) on layer.
func (m *Map) Tile(layer, tx, ty int) (MapTile, bool) {
	room, row, col, ok := m.locate(layer, tx, ty)
	if !ok {
		return MapTile{}, false
	}
	return m.rooms[room].Tiles[layer][row][col], true
}

// SetTile replaces the tile at world tile coordinate (tx, ty) on layer.
// It reports false when no room covers the coordinate.
func (m *Map) SetTile(layer, tx, ty int, tile MapTile) bool {
	room, row, col, ok := m.locate(layer, tx, ty)
	if !ok {
		return false
	}
	m.rooms[room].Tiles[layer][row][col] = tile
	return true
}

// SameLayout reports whether other has the same rooms at the same
// coordinates in the same order.
func (m *Map) SameLayout(other *Map) bool {
	if len(m.rooms) != len(other.rooms) {
		return false
	}
	for i := range m.rooms {
		if m.rooms[i].X != other.rooms[i].X || m.rooms[i].Y != other.rooms[i].Y {
			return false
		}
	}
	return true
}
