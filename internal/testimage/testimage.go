//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package testimage builds small PE32+ images carrying an asset table, for
// tests that need a realistic executable without shipping the game.
package testimage

import (
	"encoding/binary"
)

const (
	// DefaultImageBase matches the usual base of 64-bit Windows executables.
	DefaultImageBase = 0x140000000

	peOffset       = 0x80
	optHeaderSize  = 240
	headersSize    = 0x400
	fileAlignment  = 0x200
	sectionAlign   = 0x1000
	descriptorSize = 48
)

// Entry is one asset table record to place in the image.
type Entry struct {
	Kind     byte // Full tag, including the encrypted bit
	Payload  []byte
	Reserved [35]byte // Bytes 1..7 and 20..47 of the record, in order
}

// Image is the result of Build along with the addresses tests need.
type Image struct {
	Bytes        []byte
	ImageBase    uint64
	DataRVA      uint32
	RDataRVA     uint32
	TablePointer uint64
	Pointers     []uint64 // Absolute payload pointer per entry
}

// Builder assembles an image section by section.
type Builder struct {
	ImageBase uint64
	// Text is placed before the data sections so offsets are non-trivial.
	Text []byte
	// DataPrefix is written to .data before the asset table.
	DataPrefix []byte
	// OmitRData drops the .rdata section to produce a broken image.
	OmitRData bool
	Entries   []Entry
}

// New returns a builder with default addresses.
func New() *Builder {
	return &Builder{
		ImageBase:  DefaultImageBase,
		Text:       make([]byte, 0x180),
		DataPrefix: make([]byte, 0x40),
	}
}

// Add appends an entry and returns its id.
func (b *Builder) Add(kind byte, payload []byte) int {
	b.Entries = append(b.Entries, Entry{Kind: kind, Payload: payload})
	return len(b.Entries) - 1
}

// Build lays out .text, .rdata and .data and returns the finished image.
func (b *Builder) Build() *Image {
	// .rdata: payloads, 16-byte aligned
	var rdata []byte
	offsets := make([]int, len(b.Entries))
	for i, e := range b.Entries {
		for len(rdata)%16 != 0 {
			rdata = append(rdata, 0)
		}
		offsets[i] = len(rdata)
		rdata = append(rdata, e.Payload...)
	}
	if len(rdata) == 0 {
		rdata = make([]byte, 16)
	}

	textRVA := uint32(sectionAlign)
	rdataRVA := textRVA + alignUp(uint32(len(b.Text)), sectionAlign)
	dataRVA := rdataRVA + alignUp(uint32(len(rdata)), sectionAlign)

	img := &Image{
		ImageBase:    b.ImageBase,
		DataRVA:      dataRVA,
		RDataRVA:     rdataRVA,
		TablePointer: b.ImageBase + uint64(dataRVA) + uint64(len(b.DataPrefix)),
		Pointers:     make([]uint64, len(b.Entries)),
	}

	// .data: prefix, then the descriptor table
	data := append([]byte{}, b.DataPrefix...)
	for i, e := range b.Entries {
		ptr := b.ImageBase + uint64(rdataRVA) + uint64(offsets[i])
		img.Pointers[i] = ptr

		rec := make([]byte, descriptorSize)
		rec[0] = e.Kind
		copy(rec[1:8], e.Reserved[:7])
		binary.LittleEndian.PutUint64(rec[8:16], ptr)
		binary.LittleEndian.PutUint32(rec[16:20], uint32(len(e.Payload)))
		copy(rec[20:48], e.Reserved[7:])
		data = append(data, rec...)
	}

	type section struct {
		name string
		rva  uint32
		raw  []byte
	}
	sections := []section{
		{".text", textRVA, b.Text},
	}
	if !b.OmitRData {
		sections = append(sections, section{".rdata", rdataRVA, rdata})
	}
	sections = append(sections, section{".data", dataRVA, data})

	out := make([]byte, headersSize)
	out[0], out[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(out[0x3C:], peOffset)
	copy(out[peOffset:], []byte{'P', 'E', 0, 0})

	coff := peOffset + 4
	binary.LittleEndian.PutUint16(out[coff:], 0x8664)
	binary.LittleEndian.PutUint16(out[coff+2:], uint16(len(sections)))
	binary.LittleEndian.PutUint16(out[coff+16:], optHeaderSize)

	opt := coff + 20
	binary.LittleEndian.PutUint16(out[opt:], 0x20B)
	binary.LittleEndian.PutUint64(out[opt+24:], b.ImageBase)
	binary.LittleEndian.PutUint32(out[opt+32:], sectionAlign)
	binary.LittleEndian.PutUint32(out[opt+36:], fileAlignment)

	table := opt + optHeaderSize
	for i, s := range sections {
		rawOffset := uint32(len(out))
		rawSize := alignUp(uint32(len(s.raw)), fileAlignment)

		hdr := out[table+i*40 : table+(i+1)*40]
		copy(hdr[0:8], s.name)
		binary.LittleEndian.PutUint32(hdr[8:], uint32(len(s.raw)))
		binary.LittleEndian.PutUint32(hdr[12:], s.rva)
		binary.LittleEndian.PutUint32(hdr[16:], rawSize)
		binary.LittleEndian.PutUint32(hdr[20:], rawOffset)

		raw := make([]byte, rawSize)
		copy(raw, s.raw)
		out = append(out, raw...)
	}

	img.Bytes = out
	return img
}

func alignUp(v, a uint32) uint32 {
	if v == 0 {
		return a
	}
	return (v + a - 1) &^ (a - 1)
}
