//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package store

import (
	"fmt"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/provide-io/wellkit/internal/workenv"
	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
	"github.com/provide-io/wellkit/pkg/asset/integrity"
	"github.com/provide-io/wellkit/pkg/asset/table"
)

// ExtractAll writes every asset to dir as "<id><ext>", including kinds that
// are never overlaid. With decodePNG, png payloads are decoded and encoded
// again so trailing padding is dropped. It returns the number of files
// written.
func (s *Store) ExtractAll(dir string, decodePNG bool) (int, error) {
	if s.state != Loaded {
		return 0, fmt.Errorf("%w: state %s", asseterrors.ErrNotLoaded, s.state)
	}
	if err := workenv.CreateOverlay(dir); err != nil {
		return 0, err
	}

	count := 0
	for id := range s.assets {
		a := &s.assets[id]
		kind := a.desc.Kind()

		data, err := a.current()
		if err != nil {
			return count, fmt.Errorf("asset %d (%s): %w", id, kind, err)
		}

		path := filepath.Join(dir, table.FileName(id, kind))
		if err := writeFile(path, data); err != nil {
			return count, fmt.Errorf("asset %d (%s): %w", id, kind, err)
		}
		count++

		if decodePNG && kind == table.KindPNG {
			if err := reencodePNG(path); err != nil {
				s.logger.Warn("⚠️ Keeping raw png", "id", id, "error", err)
			}
		}
	}

	s.logger.Info("✅ Extracted assets", "dir", dir, "files", count)
	return count, nil
}

func reencodePNG(path string) error {
	img, err := imgio.Open(path)
	if err != nil {
		return err
	}
	return imgio.Save(path, img, imgio.PNGEncoder())
}

// Hashes returns the hash of every asset's current bytes, for pinning the
// loaded image as a reference build.
func (s *Store) Hashes() (*integrity.Table, error) {
	if s.state != Loaded {
		return nil, fmt.Errorf("%w: state %s", asseterrors.ErrNotLoaded, s.state)
	}

	hashes := make(map[uint32]uint64, len(s.assets))
	for id := range s.assets {
		data, err := s.assets[id].current()
		if err != nil {
			return nil, fmt.Errorf("asset %d: %w", id, err)
		}
		hashes[uint32(id)] = integrity.Sum(data)
	}
	return integrity.NewTable(s.imageChecksum, hashes), nil
}
