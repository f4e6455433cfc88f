//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package store

import (
	"fmt"

	"github.com/provide-io/wellkit/pkg/asset/formats"
	"github.com/provide-io/wellkit/pkg/asset/table"
)

// codec is a parsed structured asset.
type codec interface {
	Save() ([]byte, error)
}

type codecEntry struct {
	parse func([]byte) (codec, error)
	// mismatch describes how an overlay differs structurally from the
	// loaded asset, or returns "" when it does not.
	mismatch func(base, next codec) string
}

var codecs = map[table.Kind]codecEntry{
	table.KindMap: {
		parse: func(b []byte) (codec, error) { return formats.ParseMap(b) },
		mismatch: func(base, next codec) string {
			a, b := base.(*formats.Map), next.(*formats.Map)
			if a.RoomCount() != b.RoomCount() {
				return fmt.Sprintf("room count %d, loaded %d", b.RoomCount(), a.RoomCount())
			}
			if !a.SameLayout(b) {
				return "room layout differs from loaded map"
			}
			return ""
		},
	},
	table.KindSprite: {
		parse: func(b []byte) (codec, error) { return formats.ParseSprite(b) },
		mismatch: func(base, next codec) string {
			a, b := base.(*formats.Sprite), next.(*formats.Sprite)
			if len(a.Layers) != len(b.Layers) {
				return fmt.Sprintf("layer count %d, loaded %d", len(b.Layers), len(a.Layers))
			}
			return ""
		},
	},
	table.KindUVAtlas: {
		parse: func(b []byte) (codec, error) { return formats.ParseUVAtlas(b) },
		mismatch: func(base, next codec) string {
			a, b := base.(*formats.UVAtlas), next.(*formats.UVAtlas)
			if len(a.Entries) != len(b.Entries) {
				return fmt.Sprintf("atlas entry count %d, loaded %d", len(b.Entries), len(a.Entries))
			}
			return ""
		},
	},
	table.KindAmbient: {
		parse: func(b []byte) (codec, error) { return formats.ParseAmbient(b) },
		mismatch: func(base, next codec) string {
			a, b := base.(*formats.AmbientTable), next.(*formats.AmbientTable)
			if len(a.Entries) != len(b.Entries) {
				return fmt.Sprintf("ambient record count %d, loaded %d", len(b.Entries), len(a.Entries))
			}
			return ""
		},
	},
}
