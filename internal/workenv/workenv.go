//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package workenv resolves where overlay folders live and records which
// image an overlay was written against.
package workenv

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// GetOverlayRoot returns the root directory holding per-image overlays.
func GetOverlayRoot() string {
	// Check environment variable first
	if dir := os.Getenv("WELLKIT_OVERLAY_DIR"); dir != "" {
		return dir
	}

	// Use platform-specific defaults
	switch runtime.GOOS {
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Application Support", "wellkit")
		}
	case "linux":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "wellkit")
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".local", "share", "wellkit")
		}
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "wellkit")
		}
	}

	// Fallback to temp directory
	return filepath.Join(os.TempDir(), "wellkit")
}

// GetOverlayPath returns the overlay folder for an image, keyed by the
// first 8 hex digits of its checksum.
func GetOverlayPath(root, imageChecksum string) string {
	identifier := strings.TrimPrefix(imageChecksum, "fnv:")
	if len(identifier) > 8 {
		identifier = identifier[:8]
	}
	if identifier == "" {
		identifier = "default"
	}
	return filepath.Join(root, identifier)
}

// CreateOverlay creates an overlay folder.
func CreateOverlay(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create overlay folder: %w", err)
	}
	return nil
}
