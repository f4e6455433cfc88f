//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package integrity provides the content hash used to pin assets to a
// reference build, detect edits, and skip rewriting unchanged files.
//
// Format of a rendered hash: "fnv:0123456789abcdef".
package integrity

import (
	"bytes"
	"fmt"
	"hash"
	"strconv"
	"strings"
)

const (
	// Seed and multiplier are the 32-bit FNV constants applied to a 64-bit
	// state. The result is not canonical FNV-1a-64 and must not be swapped
	// for hash/fnv.
	Seed       uint64 = 2166136261
	Multiplier uint64 = 16777619

	prefix = "fnv:"
)

// Sum hashes b: for each byte, state ^= byte, then state *= Multiplier.
func Sum(b []byte) uint64 {
	h := Seed
	for _, c := range b {
		h ^= uint64(c)
		h *= Multiplier
	}
	return h
}

type digest uint64

// New returns a streaming hash.Hash64 computing Sum.
func New() hash.Hash64 {
	d := digest(Seed)
	return &d
}

func (d *digest) Write(p []byte) (int, error) {
	h := uint64(*d)
	for _, c := range p {
		h ^= uint64(c)
		h *= Multiplier
	}
	*d = digest(h)
	return len(p), nil
}

func (d *digest) Sum64() uint64 { return uint64(*d) }

func (d *digest) Sum(b []byte) []byte {
	v := uint64(*d)
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (d *digest) Reset()         { *d = digest(Seed) }
func (d *digest) Size() int      { return 8 }
func (d *digest) BlockSize() int { return 1 }

// Format renders a hash with its algorithm prefix.
func Format(h uint64) string {
	return fmt.Sprintf("%s%016x", prefix, h)
}

// Parse reads a hash rendered by Format. The prefix is optional.
func Parse(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), prefix)
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return v, nil
}

// Verify reports whether data hashes to the rendered checksum.
func Verify(data []byte, checksum string) (bool, error) {
	want, err := Parse(checksum)
	if err != nil {
		return false, err
	}
	return Sum(data) == want, nil
}

// PaddedEqual reports whether raw equals encoded followed only by zero
// bytes. This is the round-trip rule for payloads that carry cipher
// padding or incidental trailing padding.
func PaddedEqual(encoded, raw []byte) bool {
	if len(raw) < len(encoded) || !bytes.Equal(encoded, raw[:len(encoded)]) {
		return false
	}
	for _, c := range raw[len(encoded):] {
		if c != 0 {
			return false
		}
	}
	return true
}
