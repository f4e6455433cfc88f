//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package container locates the `.data` and `.rdata` segments of the game
// executable and translates stored pointers into segment offsets.
//
// Only the headers needed to find those two sections are read. Imports,
// relocations and resources are never touched.
package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-hclog"

	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
	"github.com/provide-io/wellkit/pkg/logging"
)

// Header layout constants
const (
	dosHeaderSize      = 0x40
	lfanewOffset       = 0x3C
	coffHeaderSize     = 20
	sectionHeaderSize  = 40
	sectionNameSize    = 8
	optionalMagicPE32  = 0x10B
	optionalMagicPE32P = 0x20B

	// Section names used by the asset table
	DataSection  = ".data"
	RDataSection = ".rdata"
)

var peSignature = []byte{'P', 'E', 0, 0}

// Segment is a named byte range of the image plus the addresses needed to
// rebase pointers that the game stores as absolute virtual addresses.
type Segment struct {
	Name           string
	Data           []byte // View into the image, not a copy
	FileOffset     uint32 // PointerToRawData
	VirtualAddress uint32 // Section RVA
	ImageBase      uint64
}

// EffectiveAddress is the absolute address the segment is loaded at.
func (s Segment) EffectiveAddress() uint64 {
	return s.ImageBase + uint64(s.VirtualAddress)
}

// TranslatePointer converts an absolute pointer into an offset relative to
// a segment: pointer - imageBase - segmentVA. ok is false on underflow.
func TranslatePointer(pointer, imageBase uint64, segmentVA uint32) (offset uint64, ok bool) {
	start := imageBase + uint64(segmentVA)
	if pointer < start {
		return 0, false
	}
	return pointer - start, true
}

// Offset translates pointer into an offset inside the segment data.
func (s Segment) Offset(pointer uint64) (int, error) {
	off, ok := TranslatePointer(pointer, s.ImageBase, s.VirtualAddress)
	if !ok || off >= uint64(len(s.Data)) {
		return 0, fmt.Errorf("%w: pointer 0x%x not in %s [0x%x, 0x%x)",
			asseterrors.ErrOutOfBounds, pointer, s.Name,
			s.EffectiveAddress(), s.EffectiveAddress()+uint64(len(s.Data)))
	}
	return int(off), nil
}

// Slice returns length bytes of segment data starting at pointer.
func (s Segment) Slice(pointer uint64, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", asseterrors.ErrOutOfBounds, length)
	}
	if length == 0 {
		if _, err := s.Offset(pointer); err != nil {
			return nil, err
		}
		return []byte{}, nil
	}
	start, err := s.Offset(pointer)
	if err != nil {
		return nil, err
	}
	end := start + length
	if end > len(s.Data) {
		return nil, fmt.Errorf("%w: range 0x%x+%d exceeds %s size %d",
			asseterrors.ErrOutOfBounds, pointer, length, s.Name, len(s.Data))
	}
	return s.Data[start:end:end], nil
}

// Segments are the two sections the asset table depends on.
type Segments struct {
	ImageBase uint64
	Data      Segment
	RData     Segment
}

// sectionHeader holds the fields read from one section table entry.
type sectionHeader struct {
	name             string
	virtualSize      uint32
	virtualAddress   uint32
	sizeOfRawData    uint32
	pointerToRawData uint32
}

// Locate parses the executable headers and returns the `.data` and
// `.rdata` segments. Every failure is fatal for the caller's load.
func Locate(image []byte, logger hclog.Logger) (*Segments, error) {
	logger = logging.OrNull(logger)

	if len(image) < dosHeaderSize || image[0] != 'M' || image[1] != 'Z' {
		return nil, fmt.Errorf("%w: missing MZ header", asseterrors.ErrInvalidContainer)
	}

	peOffset := int(binary.LittleEndian.Uint32(image[lfanewOffset : lfanewOffset+4]))
	if peOffset < 0 || peOffset+4+coffHeaderSize > len(image) {
		return nil, fmt.Errorf("%w: PE header offset 0x%x beyond image size %d",
			asseterrors.ErrInvalidContainer, peOffset, len(image))
	}
	if !bytes.Equal(image[peOffset:peOffset+4], peSignature) {
		return nil, fmt.Errorf("%w: invalid PE signature at offset 0x%x: got %v",
			asseterrors.ErrInvalidContainer, peOffset, image[peOffset:peOffset+4])
	}

	coffOffset := peOffset + 4
	numSections := int(binary.LittleEndian.Uint16(image[coffOffset+2 : coffOffset+4]))
	optHdrSize := int(binary.LittleEndian.Uint16(image[coffOffset+16 : coffOffset+18]))
	optOffset := coffOffset + coffHeaderSize

	imageBase, err := readImageBase(image, optOffset, optHdrSize)
	if err != nil {
		return nil, err
	}

	sectionTableOffset := optOffset + optHdrSize
	if sectionTableOffset+numSections*sectionHeaderSize > len(image) {
		return nil, fmt.Errorf("%w: section table (%d entries at 0x%x) beyond image size %d",
			asseterrors.ErrInvalidContainer, numSections, sectionTableOffset, len(image))
	}

	logger.Debug("Reading section table",
		"pe_offset", fmt.Sprintf("0x%x", peOffset),
		"num_sections", numSections,
		"image_base", fmt.Sprintf("0x%x", imageBase))

	segs := &Segments{ImageBase: imageBase}
	var haveData, haveRData bool

	for i := 0; i < numSections; i++ {
		hdr := readSectionHeader(image, sectionTableOffset+i*sectionHeaderSize)

		logger.Trace("Section",
			"index", i,
			"name", hdr.name,
			"rva", fmt.Sprintf("0x%x", hdr.virtualAddress),
			"raw_offset", fmt.Sprintf("0x%x", hdr.pointerToRawData),
			"raw_size", hdr.sizeOfRawData)

		if hdr.name != DataSection && hdr.name != RDataSection {
			continue
		}

		seg, err := segmentFor(image, hdr, imageBase)
		if err != nil {
			return nil, err
		}

		if hdr.name == DataSection && !haveData {
			segs.Data, haveData = seg, true
		} else if hdr.name == RDataSection && !haveRData {
			segs.RData, haveRData = seg, true
		}
	}

	if !haveData {
		return nil, fmt.Errorf("%w: %s", asseterrors.ErrSectionMissing, DataSection)
	}
	if !haveRData {
		return nil, fmt.Errorf("%w: %s", asseterrors.ErrSectionMissing, RDataSection)
	}

	logger.Debug("Located segments",
		"data_va", fmt.Sprintf("0x%x", segs.Data.EffectiveAddress()),
		"data_size", len(segs.Data.Data),
		"rdata_va", fmt.Sprintf("0x%x", segs.RData.EffectiveAddress()),
		"rdata_size", len(segs.RData.Data))

	return segs, nil
}

// readImageBase reads ImageBase from a PE32 or PE32+ optional header.
func readImageBase(image []byte, optOffset, optHdrSize int) (uint64, error) {
	if optHdrSize < 32 || optOffset+optHdrSize > len(image) {
		return 0, fmt.Errorf("%w: optional header size %d at 0x%x",
			asseterrors.ErrInvalidContainer, optHdrSize, optOffset)
	}

	magic := binary.LittleEndian.Uint16(image[optOffset : optOffset+2])
	switch magic {
	case optionalMagicPE32P:
		return binary.LittleEndian.Uint64(image[optOffset+24 : optOffset+32]), nil
	case optionalMagicPE32:
		return uint64(binary.LittleEndian.Uint32(image[optOffset+28 : optOffset+32])), nil
	default:
		return 0, fmt.Errorf("%w: unknown optional header magic 0x%x",
			asseterrors.ErrInvalidContainer, magic)
	}
}

func readSectionHeader(image []byte, off int) sectionHeader {
	name := image[off : off+sectionNameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return sectionHeader{
		name:             string(name),
		virtualSize:      binary.LittleEndian.Uint32(image[off+8 : off+12]),
		virtualAddress:   binary.LittleEndian.Uint32(image[off+12 : off+16]),
		sizeOfRawData:    binary.LittleEndian.Uint32(image[off+16 : off+20]),
		pointerToRawData: binary.LittleEndian.Uint32(image[off+20 : off+24]),
	}
}

func segmentFor(image []byte, hdr sectionHeader, imageBase uint64) (Segment, error) {
	start := uint64(hdr.pointerToRawData)
	end := start + uint64(hdr.sizeOfRawData)
	if end > uint64(len(image)) {
		return Segment{}, fmt.Errorf("%w: section %s raw data [0x%x, 0x%x) beyond image size %d",
			asseterrors.ErrInvalidContainer, hdr.name, start, end, len(image))
	}
	return Segment{
		Name:           hdr.name,
		Data:           image[start:end:end],
		FileOffset:     hdr.pointerToRawData,
		VirtualAddress: hdr.virtualAddress,
		ImageBase:      imageBase,
	}, nil
}
