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
	SpriteMagic      uint32 = 0x00BBB0B0
	SpriteHeaderSize        = 16

	// EmptyComposition marks a (frame, layer) slot with no sub-sprite.
	EmptyComposition uint8 = 0xFF
)

type spriteHeader struct {
	Magic            uint32
	CompositeWidth   uint16
	CompositeHeight  uint16
	LayerCount       uint16
	CompositionCount uint16
	SubSpriteCount   uint16
	AnimationCount   uint8
	Reserved         uint8
}

// Animation is a frame range played with a fixed delay.
type Animation struct {
	Start    uint16
	End      uint16
	Delay    uint16
	Mode     uint8
	Reserved uint8
}

// SubSprite is an atlas rectangle and where it lands on the composite.
type SubSprite struct {
	AtlasX  uint16
	AtlasY  uint16
	Width   uint16
	Height  uint16
	OffsetX uint16
	OffsetY uint16
}

// SpriteLayer flags. Non-zero means set; the stored byte is kept.
type SpriteLayer struct {
	Normals uint8
	Visible uint8
}

func (l SpriteLayer) IsNormals() bool { return l.Normals != 0 }
func (l SpriteLayer) IsVisible() bool { return l.Visible != 0 }

// Sprite is a layered, animated composite. Compositions is a flat
// CompositionCount x len(Layers) table of sub-sprite indices.
type Sprite struct {
	CompositeWidth   uint16
	CompositeHeight  uint16
	CompositionCount int
	Reserved         uint8

	Animations   []Animation
	Compositions []uint8
	SubSprites   []SubSprite
	Layers       []SpriteLayer
}

// ParseSprite decodes a sprite asset.
func ParseSprite(data []byte) (*Sprite, error) {
	p := Buffer(data)

	var hdr spriteHeader
	if err := p.Get(&hdr); err != nil {
		return nil, fmt.Errorf("sprite header: %w", err)
	}
	if err := checkMagic("sprite", hdr.Magic, SpriteMagic); err != nil {
		return nil, err
	}

	s := &Sprite{
		CompositeWidth:   hdr.CompositeWidth,
		CompositeHeight:  hdr.CompositeHeight,
		CompositionCount: int(hdr.CompositionCount),
		Reserved:         hdr.Reserved,
		Animations:       make([]Animation, hdr.AnimationCount),
	}

	if err := p.Get(s.Animations); err != nil {
		return nil, fmt.Errorf("sprite animations: %w", err)
	}

	compositions := uint64(hdr.CompositionCount) * uint64(hdr.LayerCount)
	if err := p.NeedRecords(compositions, 1, "composition"); err != nil {
		return nil, err
	}
	s.Compositions = make([]uint8, compositions)
	if err := p.Get(s.Compositions); err != nil {
		return nil, fmt.Errorf("sprite compositions: %w", err)
	}

	if err := p.NeedRecords(uint64(hdr.SubSpriteCount), 12, "sub-sprite"); err != nil {
		return nil, err
	}
	s.SubSprites = make([]SubSprite, hdr.SubSpriteCount)
	if err := p.Get(s.SubSprites); err != nil {
		return nil, fmt.Errorf("sprite sub-sprites: %w", err)
	}

	s.Layers = make([]SpriteLayer, hdr.LayerCount)
	if err := p.Get(s.Layers); err != nil {
		return nil, fmt.Errorf("sprite layers: %w", err)
	}

	return s, nil
}

// Validate checks the counts fit their header fields and the composition
// table matches CompositionCount x len(Layers).
func (s *Sprite) Validate() error {
	switch {
	case len(s.Animations) > math.MaxUint8:
		return fmt.Errorf("%w: %d animations", asseterrors.ErrInvalidLayout, len(s.Animations))
	case len(s.Layers) > math.MaxUint16:
		return fmt.Errorf("%w: %d layers", asseterrors.ErrInvalidLayout, len(s.Layers))
	case s.CompositionCount < 0 || s.CompositionCount > math.MaxUint16:
		return fmt.Errorf("%w: %d compositions", asseterrors.ErrInvalidLayout, s.CompositionCount)
	case len(s.SubSprites) > math.MaxUint16:
		return fmt.Errorf("%w: %d sub-sprites", asseterrors.ErrInvalidLayout, len(s.SubSprites))
	case len(s.Compositions) != s.CompositionCount*len(s.Layers):
		return fmt.Errorf("%w: %d composition entries, want %d x %d",
			asseterrors.ErrInvalidLayout, len(s.Compositions), s.CompositionCount, len(s.Layers))
	}
	return nil
}

// Save encodes the sprite.
func (s *Sprite) Save() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	hdr := spriteHeader{
		Magic:            SpriteMagic,
		CompositeWidth:   s.CompositeWidth,
		CompositeHeight:  s.CompositeHeight,
		LayerCount:       uint16(len(s.Layers)),
		CompositionCount: uint16(s.CompositionCount),
		SubSpriteCount:   uint16(len(s.SubSprites)),
		AnimationCount:   uint8(len(s.Animations)),
		Reserved:         s.Reserved,
	}

	p := make(Buffer, 0, SpriteHeaderSize+8*len(s.Animations)+len(s.Compositions)+12*len(s.SubSprites)+2*len(s.Layers))
	if err := p.Put(&hdr, s.Animations, s.Compositions, s.SubSprites, s.Layers); err != nil {
		return nil, err
	}
	return p, nil
}

// Composition returns the sub-sprite index for (frame, layer), and false
// when the slot is out of range or empty.
func (s *Sprite) Composition(frame, layer int) (int, bool) {
	if frame < 0 || frame >= s.CompositionCount || layer < 0 || layer >= len(s.Layers) {
		return 0, false
	}
	idx := s.Compositions[frame*len(s.Layers)+layer]
	if idx == EmptyComposition {
		return 0, false
	}
	return int(idx), true
}
