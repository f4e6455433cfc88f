//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package store ties the asset packages into one editing session: load an
// executable image, apply an overlay folder, and persist edits back to a
// folder.
package store

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/wellkit/pkg/asset/cipher"
	"github.com/provide-io/wellkit/pkg/asset/container"
	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
	"github.com/provide-io/wellkit/pkg/asset/formats"
	"github.com/provide-io/wellkit/pkg/asset/integrity"
	"github.com/provide-io/wellkit/pkg/asset/table"
	"github.com/provide-io/wellkit/pkg/logging"
)

// State is the lifecycle position of a Store.
type State int

const (
	Unloaded State = iota
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Warning is a recoverable problem found while loading or overlaying. ID is
// -1 for folder-level warnings.
type Warning struct {
	ID      int
	Kind    table.Kind
	Message string
}

func (w Warning) String() string {
	if w.ID < 0 {
		return w.Message
	}
	return fmt.Sprintf("asset %d (%s): %s", w.ID, w.Kind, w.Message)
}

// Options configure a Store. Keys and Pinned are read-only for the life of
// the store.
type Options struct {
	Layout table.Layout
	Keys   cipher.KeySet
	// Pinned hashes of a reference build. Without them the baseline is the
	// re-encoded form of the loaded image.
	Pinned *integrity.Table
	// Decrypter defaults to a cipher.Engine.
	Decrypter table.Decrypter
	Logger    hclog.Logger
	// Version is recorded in the provenance marker.
	Version string
}

// asset is the owned state of one table entry.
type asset struct {
	desc     table.Descriptor
	raw      []byte // decoded payload, owned
	typed    codec  // nil for kinds without a codec
	baseline uint64
}

// Store holds every asset of one image after load.
type Store struct {
	opts   Options
	logger hclog.Logger
	state  State

	assets        []asset
	imageChecksum string
	warnings      []Warning

	// synced is the last known content hash per folder and asset.
	synced map[string]map[int]uint64
}

// New creates an unloaded store.
func New(opts Options) *Store {
	if opts.Layout.Count == 0 {
		opts.Layout = table.DefaultLayout()
	}
	logger := logging.OrNull(opts.Logger)
	if opts.Decrypter == nil {
		opts.Decrypter = cipher.NewEngine(logger.Named("cipher"))
	}
	return &Store{
		opts:   opts,
		logger: logger,
		state:  Unloaded,
		synced: make(map[string]map[int]uint64),
	}
}

// State returns the lifecycle state.
func (s *Store) State() State {
	return s.state
}

// Warnings returns the warnings collected so far.
func (s *Store) Warnings() []Warning {
	out := make([]Warning, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// ImageChecksum is the rendered hash of the loaded image.
func (s *Store) ImageChecksum() string {
	return s.imageChecksum
}

func (s *Store) warn(id int, kind table.Kind, format string, args ...interface{}) {
	w := Warning{ID: id, Kind: kind, Message: fmt.Sprintf(format, args...)}
	s.warnings = append(s.warnings, w)
	s.logger.Warn("⚠️ "+w.Message, "id", id, "kind", kind.String())
}

// LoadFromImage decodes every asset of image. Any structural failure moves
// the store to Failed and is returned. The store keeps no reference to
// image afterwards.
func (s *Store) LoadFromImage(image []byte) error {
	if s.state != Unloaded {
		return fmt.Errorf("%w: state %s", asseterrors.ErrAlreadyLoaded, s.state)
	}

	if err := s.load(image); err != nil {
		s.state = Failed
		s.assets = nil
		s.logger.Error("❌ Load failed", "error", err)
		return err
	}

	s.state = Loaded
	return nil
}

func (s *Store) load(image []byte) error {
	segs, err := container.Locate(image, s.logger.Named("container"))
	if err != nil {
		return err
	}

	reader, err := table.NewReader(segs, s.opts.Layout, s.opts.Keys, s.opts.Decrypter, s.logger.Named("table"))
	if err != nil {
		return err
	}

	s.imageChecksum = integrity.Format(integrity.Sum(image))
	s.assets = make([]asset, reader.Count())

	typedCount, mismatches := 0, 0
	for id := range s.assets {
		desc, _ := reader.Descriptor(id)
		raw, err := reader.GetRaw(id)
		if err != nil {
			return err
		}

		a := asset{desc: desc, raw: bytes.Clone(raw)}
		encoded := a.raw
		if c, ok := codecs[desc.Kind()]; ok {
			a.typed, err = c.parse(a.raw)
			if err != nil {
				return fmt.Errorf("asset %d (%s): %w", id, desc.Kind(), err)
			}
			encoded, err = a.typed.Save()
			if err != nil {
				return fmt.Errorf("asset %d (%s): %w", id, desc.Kind(), err)
			}
			typedCount++
		}

		a.baseline = integrity.Sum(encoded)
		if !s.verifyLoaded(id, desc.Kind(), &a, encoded) {
			mismatches++
		}
		if a.typed != nil {
			a.raw = nil
		}
		s.assets[id] = a
	}

	s.logger.Info("✅ Loaded image",
		"checksum", s.imageChecksum,
		"assets", len(s.assets),
		"typed", typedCount,
		"mismatches", mismatches)
	return nil
}

// verifyLoaded checks the re-encoded asset against the pinned hash when one
// is known, otherwise against the decoded payload up to trailing zeros.
// Pinned hashes become the baseline.
func (s *Store) verifyLoaded(id int, kind table.Kind, a *asset, encoded []byte) bool {
	if pinned, ok := s.opts.Pinned.Lookup(uint32(id)); ok {
		if a.baseline != pinned {
			s.warn(id, kind, "hash %s differs from pinned %s",
				integrity.Format(a.baseline), integrity.Format(pinned))
			a.baseline = pinned
			return false
		}
		return true
	}

	if a.typed != nil && !integrity.PaddedEqual(encoded, a.raw) {
		s.warn(id, kind, "re-encoded size %d does not reproduce stored %d bytes",
			len(encoded), len(a.raw))
		return false
	}
	return true
}

func (s *Store) lookup(id int) (*asset, error) {
	if s.state != Loaded {
		return nil, fmt.Errorf("%w: state %s", asseterrors.ErrNotLoaded, s.state)
	}
	if id < 0 || id >= len(s.assets) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", asseterrors.ErrInvalidAssetID, id, len(s.assets))
	}
	return &s.assets[id], nil
}

// Count is the number of assets.
func (s *Store) Count() int {
	return len(s.assets)
}

// Descriptor returns the table record of id.
func (s *Store) Descriptor(id int) (table.Descriptor, error) {
	a, err := s.lookup(id)
	if err != nil {
		return table.Descriptor{}, err
	}
	return a.desc, nil
}

// GetAsset returns the current bytes of id: the re-encoded structure for
// typed kinds, the decoded payload otherwise.
func (s *Store) GetAsset(id int) ([]byte, error) {
	a, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return a.current()
}

func (a *asset) current() ([]byte, error) {
	if a.typed != nil {
		return a.typed.Save()
	}
	return bytes.Clone(a.raw), nil
}

// IDsOfKind lists the ids of kind in ascending order.
func (s *Store) IDsOfKind(kind table.Kind) []int {
	var ids []int
	for id := range s.assets {
		if s.assets[id].desc.Kind() == kind {
			ids = append(ids, id)
		}
	}
	return ids
}

// Map returns the live map for id. Edits made through it are persisted.
func (s *Store) Map(id int) (*formats.Map, error) {
	return typedAs[*formats.Map](s, id, table.KindMap)
}

// Sprite returns the live sprite for id.
func (s *Store) Sprite(id int) (*formats.Sprite, error) {
	return typedAs[*formats.Sprite](s, id, table.KindSprite)
}

// UVAtlas returns the live UV atlas for id.
func (s *Store) UVAtlas(id int) (*formats.UVAtlas, error) {
	return typedAs[*formats.UVAtlas](s, id, table.KindUVAtlas)
}

// Ambient returns the live ambient lighting table for id.
func (s *Store) Ambient(id int) (*formats.AmbientTable, error) {
	return typedAs[*formats.AmbientTable](s, id, table.KindAmbient)
}

func typedAs[T codec](s *Store, id int, kind table.Kind) (T, error) {
	var zero T
	a, err := s.lookup(id)
	if err != nil {
		return zero, err
	}
	v, ok := a.typed.(T)
	if !ok {
		return zero, fmt.Errorf("%w: asset %d is %s, not %s",
			asseterrors.ErrWrongKind, id, a.desc.Kind(), kind)
	}
	return v, nil
}
