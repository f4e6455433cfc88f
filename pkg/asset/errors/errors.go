//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package errors holds the sentinel errors shared by the asset packages.
// Callers wrap them with context and match with errors.Is.
package errors

import "errors"

var (
	// Container errors 🗄️
	ErrInvalidContainer = errors.New("❌ invalid executable container")
	ErrSectionMissing   = errors.New("❌ required section missing")
	ErrOutOfBounds      = errors.New("❌ pointer outside segment")

	// Asset table errors 📇
	ErrInvalidAssetID = errors.New("❌ invalid asset id")
	ErrTableBounds    = errors.New("❌ asset table out of bounds")

	// Format errors 📦
	ErrInvalidMagic  = errors.New("❌ invalid format magic")
	ErrTruncated     = errors.New("❌ truncated asset data")
	ErrDuplicateRoom = errors.New("❌ duplicate room coordinate")
	ErrInvalidLayout = errors.New("❌ inconsistent record layout")

	// Cipher errors 🔒
	ErrInvalidKey      = errors.New("❌ invalid cipher key")
	ErrCiphertextShort = errors.New("❌ ciphertext shorter than header blocks")

	// Store errors 🧰
	ErrNotLoaded     = errors.New("❌ asset store not loaded")
	ErrAlreadyLoaded = errors.New("❌ asset store already loaded")
	ErrWrongKind     = errors.New("❌ asset has a different kind")
)
