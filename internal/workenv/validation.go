//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package workenv

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	opt "github.com/repeale/fp-go/option"
)

// MarkerName is the provenance file written next to persisted assets.
const MarkerName = ".wellkit.json"

// Marker records which image and tool produced an overlay folder.
type Marker struct {
	Timestamp     time.Time `json:"timestamp"`
	Tool          string    `json:"tool"`
	Version       string    `json:"version"`
	ImageChecksum string    `json:"image_checksum"`
	Written       []int     `json:"written,omitempty"`
}

// ReadMarker returns the folder's marker, or None when there is none.
func ReadMarker(path string) (opt.Option[Marker], error) {
	data, err := os.ReadFile(filepath.Join(path, MarkerName))
	if errors.Is(err, fs.ErrNotExist) {
		return opt.None[Marker](), nil
	}
	if err != nil {
		return opt.None[Marker](), err
	}

	var marker Marker
	if err := json.Unmarshal(data, &marker); err != nil {
		return opt.None[Marker](), fmt.Errorf("parsing %s: %w", MarkerName, err)
	}
	return opt.Some(marker), nil
}

// Matches reports whether the folder has no marker or a marker for the
// given image.
func Matches(path, imageChecksum string) bool {
	marker, err := ReadMarker(path)
	if err != nil {
		return false
	}
	return opt.IsNone(marker) || marker.Value.ImageChecksum == imageChecksum
}

// MarkWritten writes the folder's marker.
func MarkWritten(path, version, imageChecksum string, written []int) (err error) {
	marker := Marker{
		Timestamp:     time.Now().UTC(),
		Tool:          "wellkit",
		Version:       version,
		ImageChecksum: imageChecksum,
		Written:       written,
	}

	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(path, MarkerName))
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
