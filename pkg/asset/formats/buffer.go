//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package formats holds the codecs for the game's structured asset kinds:
// maps, sprites, UV atlases and ambient lighting tables.
//
// Every codec reads a magic-number header followed by a fixed number of
// fixed-size records. Parse ignores bytes after the last declared record
// and Save never produces them, so save(parse(b)) equals b up to trailing
// padding.
package formats

import (
	"encoding/binary"
	"fmt"

	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
)

// Buffer is a little-endian read cursor and write buffer over fixed-size
// values. Reads never reach past the end of the slice.
type Buffer []byte

// NeedRecords fails unless count records of size bytes can be read. It is
// checked before allocating anything sized by a header count.
func (p *Buffer) NeedRecords(count uint64, size int, what string) error {
	if size > 0 && count > uint64(len(*p))/uint64(size) {
		return fmt.Errorf("%w: %d %s records of %d bytes, %d bytes left",
			asseterrors.ErrTruncated, count, what, size, len(*p))
	}
	return nil
}

// Get decodes each piece in order. Pieces are pointers to fixed-size values
// or slices of them.
func (p *Buffer) Get(pieces ...interface{}) error {
	for _, piece := range pieces {
		size := binary.Size(piece)
		if size < 0 {
			return fmt.Errorf("cannot decode %T", piece)
		}
		if size > len(*p) {
			return fmt.Errorf("%w: %T needs %d bytes, %d left",
				asseterrors.ErrTruncated, piece, size, len(*p))
		}
		n, err := binary.Decode(*p, binary.LittleEndian, piece)
		if err != nil {
			return fmt.Errorf("%w: %v", asseterrors.ErrTruncated, err)
		}
		*p = (*p)[n:]
	}
	return nil
}

// Put appends each piece in order.
func (p *Buffer) Put(pieces ...interface{}) error {
	for _, piece := range pieces {
		out, err := binary.Append(*p, binary.LittleEndian, piece)
		if err != nil {
			return fmt.Errorf("cannot encode %T: %w", piece, err)
		}
		*p = out
	}
	return nil
}

func checkMagic(kind string, got, want uint32) error {
	if got != want {
		return fmt.Errorf("%w: %s header 0x%08x, want 0x%08x",
			asseterrors.ErrInvalidMagic, kind, got, want)
	}
	return nil
}
