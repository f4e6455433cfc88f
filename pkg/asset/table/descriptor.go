//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package table

import (
	"encoding/binary"
	"fmt"

	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
)

// DescriptorSize is the size of one record in the asset table.
const DescriptorSize = 48

// Kind tag bits
const (
	kindMask      = 0x3F
	encryptedFlag = 0x40
)

// Kind identifies the content type of an asset.
type Kind uint8

const (
	KindText Kind = iota
	KindPNG
	KindOGG
	KindSprite
	KindMap
	KindShader
	KindUVAtlas
	KindFont
	KindAmbient
)

var kindNames = map[Kind]string{
	KindText:    "text",
	KindPNG:     "png",
	KindOGG:     "ogg",
	KindSprite:  "sprite",
	KindMap:     "map",
	KindShader:  "shader",
	KindUVAtlas: "uv",
	KindFont:    "font",
	KindAmbient: "ambient",
}

var kindExtensions = map[Kind]string{
	KindPNG:     ".png",
	KindOGG:     ".ogg",
	KindSprite:  ".sprite",
	KindMap:     ".map",
	KindUVAtlas: ".uvs",
	KindAmbient: ".ambient",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Extension is the overlay file extension for the kind. Kinds without a
// dedicated codec use ".bin".
func (k Kind) Extension() string {
	if ext, ok := kindExtensions[k]; ok {
		return ext
	}
	return ".bin"
}

// Typed reports whether the kind has a structured codec.
func (k Kind) Typed() bool {
	switch k {
	case KindMap, KindSprite, KindUVAtlas, KindAmbient:
		return true
	}
	return false
}

// FileName is the overlay file name for an asset: "<id><ext>".
func FileName(id int, k Kind) string {
	return fmt.Sprintf("%d%s", id, k.Extension())
}

// Descriptor is one 48-byte asset table record.
//
// Binary layout:
//
//	0   u8      kind tag (low 6 bits kind, bit 6 encrypted)
//	1   [7]u8   reserved
//	8   u64     absolute pointer
//	16  u32     byte length
//	20  [28]u8  reserved
type Descriptor struct {
	Tag       uint8
	Reserved1 [7]byte
	Pointer   uint64
	Length    uint32
	Reserved2 [28]byte
}

// Kind returns the content type from the low 6 bits of the tag.
func (d *Descriptor) Kind() Kind {
	return Kind(d.Tag & kindMask)
}

// Encrypted reports whether bit 6 of the tag is set.
func (d *Descriptor) Encrypted() bool {
	return d.Tag&encryptedFlag != 0
}

// Pack serializes the descriptor to exactly DescriptorSize bytes.
func (d *Descriptor) Pack() []byte {
	buf := make([]byte, DescriptorSize)
	buf[0] = d.Tag
	copy(buf[1:8], d.Reserved1[:])
	binary.LittleEndian.PutUint64(buf[8:16], d.Pointer)
	binary.LittleEndian.PutUint32(buf[16:20], d.Length)
	copy(buf[20:48], d.Reserved2[:])
	return buf
}

// UnpackDescriptor deserializes a descriptor from DescriptorSize bytes.
func UnpackDescriptor(data []byte) (*Descriptor, error) {
	if len(data) != DescriptorSize {
		return nil, fmt.Errorf("%w: descriptor size: expected %d, got %d",
			asseterrors.ErrTruncated, DescriptorSize, len(data))
	}

	d := &Descriptor{
		Tag:     data[0],
		Pointer: binary.LittleEndian.Uint64(data[8:16]),
		Length:  binary.LittleEndian.Uint32(data[16:20]),
	}
	copy(d.Reserved1[:], data[1:8])
	copy(d.Reserved2[:], data[20:48])
	return d, nil
}
