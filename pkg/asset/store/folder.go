//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	opt "github.com/repeale/fp-go/option"

	"github.com/provide-io/wellkit/internal/workenv"
	asseterrors "github.com/provide-io/wellkit/pkg/asset/errors"
	"github.com/provide-io/wellkit/pkg/asset/integrity"
	"github.com/provide-io/wellkit/pkg/asset/table"
)

// editable kinds are the ones overlaid from and persisted to folders.
func editable(k table.Kind) bool {
	return k.Typed() || k == table.KindPNG
}

func folderKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func (s *Store) markSynced(key string, id int, h uint64) {
	m, ok := s.synced[key]
	if !ok {
		m = make(map[int]uint64)
		s.synced[key] = m
	}
	m[id] = h
}

// lastKnown is the hash the folder is believed to hold for id.
func (s *Store) lastKnown(key string, id int) uint64 {
	if h, ok := s.synced[key][id]; ok {
		return h
	}
	return s.assets[id].baseline
}

// OverlayFromFolder replaces loaded assets with the matching files in dir
// and returns the ids applied. Missing files are skipped. Files that fail to
// decode keep the loaded asset; structural differences are applied. Both
// produce warnings.
func (s *Store) OverlayFromFolder(dir string) ([]int, error) {
	if s.state != Loaded {
		return nil, fmt.Errorf("%w: state %s", asseterrors.ErrNotLoaded, s.state)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("overlay folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("overlay folder: %s is not a directory", dir)
	}

	s.checkMarker(dir)

	key := folderKey(dir)
	var applied []int
	for id := range s.assets {
		a := &s.assets[id]
		kind := a.desc.Kind()
		if !editable(kind) {
			continue
		}

		path := filepath.Join(dir, table.FileName(id, kind))
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			s.warn(id, kind, "reading overlay: %v", err)
			continue
		}

		if kind == table.KindPNG {
			if _, err := imgio.Open(path); err != nil {
				s.warn(id, kind, "overlay is not a valid image: %v", err)
				continue
			}
			a.raw = data
		} else {
			c := codecs[kind]
			next, err := c.parse(data)
			if err != nil {
				s.warn(id, kind, "overlay rejected: %v", err)
				continue
			}
			if msg := c.mismatch(a.typed, next); msg != "" {
				s.warn(id, kind, "%s", msg)
			}
			a.typed = next
		}

		s.markSynced(key, id, integrity.Sum(data))
		applied = append(applied, id)
		s.logger.Debug("Applied overlay", "id", id, "kind", kind.String(), "path", path)
	}

	s.logger.Info("✅ Overlay applied", "dir", dir, "assets", len(applied))
	return applied, nil
}

func (s *Store) checkMarker(dir string) {
	marker, err := workenv.ReadMarker(dir)
	if err != nil {
		s.warn(-1, 0, "overlay marker unreadable: %v", err)
		return
	}
	if opt.IsSome(marker) && marker.Value.ImageChecksum != s.imageChecksum {
		s.warn(-1, 0, "overlay was written for image %s, loaded image is %s",
			marker.Value.ImageChecksum, s.imageChecksum)
	}
}

// PersistToFolder writes every editable asset whose content differs from
// what the folder is known to hold, and returns the ids written. Before
// anything is written or overlaid from dir, the folder is assumed to match
// the loaded baseline.
func (s *Store) PersistToFolder(dir string) ([]int, error) {
	if s.state != Loaded {
		return nil, fmt.Errorf("%w: state %s", asseterrors.ErrNotLoaded, s.state)
	}
	if err := workenv.CreateOverlay(dir); err != nil {
		return nil, err
	}

	key := folderKey(dir)
	var written []int
	for id := range s.assets {
		a := &s.assets[id]
		kind := a.desc.Kind()
		if !editable(kind) {
			continue
		}

		data, err := a.current()
		if err != nil {
			return written, fmt.Errorf("asset %d (%s): %w", id, kind, err)
		}
		h := integrity.Sum(data)
		if h == s.lastKnown(key, id) {
			continue
		}

		path := filepath.Join(dir, table.FileName(id, kind))
		if err := writeFile(path, data); err != nil {
			return written, fmt.Errorf("asset %d (%s): %w", id, kind, err)
		}
		s.markSynced(key, id, h)
		written = append(written, id)
		s.logger.Debug("Wrote asset", "id", id, "kind", kind.String(), "hash", integrity.Format(h))
	}

	if len(written) > 0 {
		if err := workenv.MarkWritten(dir, s.opts.Version, s.imageChecksum, written); err != nil {
			return written, fmt.Errorf("writing marker: %w", err)
		}
	}

	s.logger.Info("✅ Persisted assets", "dir", dir, "written", len(written))
	return written, nil
}

// writeFile replaces path with data.
func writeFile(path string, data []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = f.Write(data)
	return err
}
