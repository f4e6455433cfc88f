//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package bundle packs overlay folders into mod archives and unpacks them.
package bundle

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/wellkit/internal/workenv"
	"github.com/provide-io/wellkit/pkg/asset/operations"
	_ "github.com/provide-io/wellkit/pkg/asset/operations/compress"
	"github.com/provide-io/wellkit/pkg/logging"
)

// maxEntrySize caps a single archive member
const maxEntrySize = 1 << 30

var overlayName = regexp.MustCompile(`^[0-9]+\.(map|sprite|uvs|ambient|png|ogg|bin)$`)

// IsOverlayFile reports whether name belongs in a mod archive.
func IsOverlayFile(name string) bool {
	return name == workenv.MarkerName || overlayName.MatchString(name)
}

func splitChain(ops []uint8) ([]uint8, error) {
	if len(ops) == 0 || ops[0] != operations.OP_TAR {
		return nil, fmt.Errorf("mod archives start with tar, got %s", operations.ChainName(ops))
	}
	return ops[1:], nil
}

// Pack archives the overlay files of dir and applies the rest of the chain.
func Pack(dir string, ops []uint8, logger hclog.Logger) ([]byte, []string, error) {
	logger = logging.OrNull(logger)
	rest, err := splitChain(ops)
	if err != nil {
		return nil, nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading overlay folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsOverlayFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", name, err)
		}

		header := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     0644,
			Size:     int64(len(data)),
			ModTime:  time.Now().UTC(),
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, nil, fmt.Errorf("writing tar header: %w", err)
		}
		if _, err := tw.Write(data); err != nil {
			return nil, nil, fmt.Errorf("writing tar data: %w", err)
		}
		logger.Trace("Archived", "name", name, "size", len(data))
	}
	if err := tw.Close(); err != nil {
		return nil, nil, fmt.Errorf("closing tar writer: %w", err)
	}

	out, err := operations.ApplyChain(buf.Bytes(), rest)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("Packed overlay",
		"dir", dir,
		"files", len(names),
		"chain", operations.ChainName(ops),
		"size", len(out))
	return out, names, nil
}

// Unpack reverses the chain and writes the archive members into dir. Only
// plain overlay file names are accepted.
func Unpack(data []byte, ops []uint8, dir string, logger hclog.Logger) ([]string, error) {
	logger = logging.OrNull(logger)
	rest, err := splitChain(ops)
	if err != nil {
		return nil, err
	}

	raw, err := operations.ReverseChain(data, rest)
	if err != nil {
		return nil, err
	}

	if err := workenv.CreateOverlay(dir); err != nil {
		return nil, err
	}

	var names []string
	tr := tar.NewReader(bytes.NewReader(raw))
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return names, fmt.Errorf("reading tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg || !IsOverlayFile(header.Name) {
			return names, fmt.Errorf("unexpected archive member %q", header.Name)
		}
		// Validate size
		if header.Size < 0 || header.Size > maxEntrySize {
			return names, fmt.Errorf("invalid file size for %s: %d", header.Name, header.Size)
		}

		if err := writeMember(filepath.Join(dir, header.Name), tr, header.Size); err != nil {
			return names, fmt.Errorf("extracting %s: %w", header.Name, err)
		}
		names = append(names, header.Name)
		logger.Trace("Extracted", "name", header.Name, "size", header.Size)
	}

	logger.Debug("Unpacked overlay", "dir", dir, "files", len(names))
	return names, nil
}

func writeMember(path string, r io.Reader, size int64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.CopyN(f, r, size)
	return err
}
