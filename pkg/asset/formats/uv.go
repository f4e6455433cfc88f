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
	UVMagic      uint32 = 0x00B00B00
	UVHeaderSize        = 12
	UVEntrySize         = 10
)

// UVFlags describe collision, lighting and auto-tiling behavior of a tile.
// The two high bits have no known meaning and are kept as read.
type UVFlags uint16

const (
	UVCollidesLeft UVFlags = 1 << iota
	UVCollidesRight
	UVCollidesUp
	UVCollidesDown
	UVNotPlaceable
	UVAdditive
	UVObscures
	UVContiguous
	UVBlocksLight
	UVSelfContiguous
	UVHidden
	UVDirt
	UVHasNormals
	UVLight

	UVKnownFlags UVFlags = 1<<14 - 1
)

var uvFlagNames = []string{
	"collides_left", "collides_right", "collides_up", "collides_down",
	"not_placeable", "additive", "obscures", "contiguous",
	"blocks_light", "self_contiguous", "hidden", "dirt",
	"has_normals", "uv_light",
}

// Has reports whether every bit of f is set.
func (u UVFlags) Has(f UVFlags) bool {
	return u&f == f
}

// With returns u with f set or cleared.
func (u UVFlags) With(f UVFlags, on bool) UVFlags {
	if on {
		return u | f
	}
	return u &^ f
}

// Names lists the set flags by name.
func (u UVFlags) Names() []string {
	var names []string
	for i, name := range uvFlagNames {
		if u&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return names
}

// UVEntry is the atlas rectangle and behavior flags of one tile.
type UVEntry struct {
	X      uint16
	Y      uint16
	Width  uint16
	Height uint16
	Flags  UVFlags
}

type uvHeader struct {
	Magic    uint32
	Count    uint32
	Reserved uint32
}

// UVAtlas is the tile atlas table.
type UVAtlas struct {
	Reserved uint32
	Entries  []UVEntry
}

// ParseUVAtlas decodes a UV atlas asset.
func ParseUVAtlas(data []byte) (*UVAtlas, error) {
	p := Buffer(data)

	var hdr uvHeader
	if err := p.Get(&hdr); err != nil {
		return nil, fmt.Errorf("uv header: %w", err)
	}
	if err := checkMagic("uv", hdr.Magic, UVMagic); err != nil {
		return nil, err
	}
	if err := p.NeedRecords(uint64(hdr.Count), UVEntrySize, "uv"); err != nil {
		return nil, err
	}

	atlas := &UVAtlas{
		Reserved: hdr.Reserved,
		Entries:  make([]UVEntry, hdr.Count),
	}
	if err := p.Get(atlas.Entries); err != nil {
		return nil, fmt.Errorf("uv entries: %w", err)
	}
	return atlas, nil
}

// Save encodes the atlas.
func (a *UVAtlas) Save() ([]byte, error) {
	if uint64(len(a.Entries)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d uv entries", asseterrors.ErrInvalidLayout, len(a.Entries))
	}
	hdr := uvHeader{Magic: UVMagic, Count: uint32(len(a.Entries)), Reserved: a.Reserved}
	p := make(Buffer, 0, UVHeaderSize+UVEntrySize*len(a.Entries))
	if err := p.Put(&hdr, a.Entries); err != nil {
		return nil, err
	}
	return p, nil
}
