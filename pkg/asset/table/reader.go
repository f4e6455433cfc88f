//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package table reads the game's asset descriptor table and resolves
// payloads, decrypting the ones whose kind tag marks them as encrypted.
package table

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	opt "github.com/repeale/fp-go/option"

	"github.com/provide-io/wellkit/pkg/asset/cipher"
	"github.com/provide-io/wellkit/pkg/asset/container"
	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
	"github.com/provide-io/wellkit/pkg/logging"
)

// AssetCount is the number of descriptors in the shipped table.
const AssetCount = 676

// Layout says where the descriptor table lives.
type Layout struct {
	// TablePointer is the absolute address of the first descriptor. Zero
	// means the start of `.data`.
	TablePointer uint64
	Count        int
}

// DefaultLayout returns the layout of the shipped executable.
func DefaultLayout() Layout {
	return Layout{Count: AssetCount}
}

// Decrypter is the cipher operation the reader needs. cipher.Engine
// implements it.
type Decrypter interface {
	Decrypt(ciphertext []byte, key cipher.Key) opt.Option[[]byte]
}

// Reader resolves descriptors against the image segments. Returned payloads
// of plaintext assets are views into the image and must be copied before
// the image is released.
type Reader struct {
	segments    *container.Segments
	descriptors []Descriptor
	keys        cipher.KeySet
	decrypter   Decrypter
	logger      hclog.Logger
}

// NewReader reads the descriptor table once. A table that does not fit in
// `.data` is fatal.
func NewReader(segs *container.Segments, layout Layout, keys cipher.KeySet, decrypter Decrypter, logger hclog.Logger) (*Reader, error) {
	logger = logging.OrNull(logger)

	if layout.Count <= 0 {
		return nil, fmt.Errorf("%w: descriptor count %d", asseterrors.ErrTableBounds, layout.Count)
	}

	ptr := layout.TablePointer
	if ptr == 0 {
		ptr = segs.Data.EffectiveAddress()
	}

	raw, err := segs.Data.Slice(ptr, layout.Count*DescriptorSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %d descriptors at 0x%x: %v",
			asseterrors.ErrTableBounds, layout.Count, ptr, err)
	}

	descs := make([]Descriptor, layout.Count)
	for i := range descs {
		d, err := UnpackDescriptor(raw[i*DescriptorSize : (i+1)*DescriptorSize])
		if err != nil {
			return nil, fmt.Errorf("descriptor %d: %w", i, err)
		}
		descs[i] = *d
	}

	logger.Debug("Read asset table",
		"table_pointer", fmt.Sprintf("0x%x", ptr),
		"count", layout.Count,
		"keys", len(keys))

	return &Reader{
		segments:    segs,
		descriptors: descs,
		keys:        keys,
		decrypter:   decrypter,
		logger:      logger,
	}, nil
}

// Count is the number of descriptors.
func (r *Reader) Count() int {
	return len(r.descriptors)
}

// Descriptors returns a copy of the table.
func (r *Reader) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Descriptor returns the record for id.
func (r *Reader) Descriptor(id int) (Descriptor, error) {
	if id < 0 || id >= len(r.descriptors) {
		return Descriptor{}, fmt.Errorf("%w: %d not in [0, %d)",
			asseterrors.ErrInvalidAssetID, id, len(r.descriptors))
	}
	return r.descriptors[id], nil
}

// GetRaw returns the decoded payload for id. Encrypted payloads are tried
// against each key in order; when every key fails the self-check the bytes
// are returned as stored.
func (r *Reader) GetRaw(id int) ([]byte, error) {
	d, err := r.Descriptor(id)
	if err != nil {
		return nil, err
	}

	payload, err := r.segments.RData.Slice(d.Pointer, int(d.Length))
	if err != nil {
		return nil, fmt.Errorf("asset %d (%s): %w", id, d.Kind(), err)
	}

	if !d.Encrypted() {
		return payload, nil
	}

	plain, keyIndex := r.decrypt(payload)
	if opt.IsNone(plain) {
		r.logger.Debug("No key matched, using payload as plaintext",
			"id", id,
			"kind", d.Kind().String(),
			"keys_tried", len(r.keys))
		return payload, nil
	}

	r.logger.Trace("Decrypted asset",
		"id", id,
		"kind", d.Kind().String(),
		"key_index", keyIndex,
		"size", len(plain.Value))
	return plain.Value, nil
}

// decrypt walks the key set until a self-check passes or the keys are
// exhausted.
func (r *Reader) decrypt(payload []byte) (opt.Option[[]byte], int) {
	if r.decrypter == nil {
		return opt.None[[]byte](), -1
	}
	for i, key := range r.keys {
		if res := r.decrypter.Decrypt(payload, key); opt.IsSome(res) {
			return res, i
		}
	}
	return opt.None[[]byte](), -1
}
