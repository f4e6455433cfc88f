//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package integrity

import (
	"fmt"
	"os"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

const tableVersion = 1

// Table maps asset ids to pinned hashes. It is read-only after creation.
type Table struct {
	source string
	hashes map[uint32]uint64
}

// tableFile is the CBOR layout of a pinned table.
type tableFile struct {
	Version int               `cbor:"1,keyasint"`
	Source  string            `cbor:"2,keyasint,omitempty"`
	Hashes  map[uint32]uint64 `cbor:"3,keyasint"`
}

// NewTable copies hashes into a new table. source names the build the
// hashes were taken from.
func NewTable(source string, hashes map[uint32]uint64) *Table {
	cp := make(map[uint32]uint64, len(hashes))
	for id, h := range hashes {
		cp[id] = h
	}
	return &Table{source: source, hashes: cp}
}

// Lookup returns the pinned hash for id.
func (t *Table) Lookup(id uint32) (uint64, bool) {
	if t == nil {
		return 0, false
	}
	h, ok := t.hashes[id]
	return h, ok
}

// Len is the number of pinned ids.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.hashes)
}

// Source names the build the table was pinned from.
func (t *Table) Source() string {
	if t == nil {
		return ""
	}
	return t.source
}

// IDs returns the pinned ids in ascending order.
func (t *Table) IDs() []uint32 {
	if t == nil {
		return nil
	}
	ids := make([]uint32, 0, len(t.hashes))
	for id := range t.hashes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Collisions returns groups of ids sharing a hash. Callers decide whether
// the payloads behind them are identical.
func (t *Table) Collisions() [][]uint32 {
	byHash := make(map[uint64][]uint32)
	for _, id := range t.IDs() {
		h := t.hashes[id]
		byHash[h] = append(byHash[h], id)
	}
	var groups [][]uint32
	for _, ids := range byHash {
		if len(ids) > 1 {
			groups = append(groups, ids)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// Marshal encodes the table as CBOR.
func (t *Table) Marshal() ([]byte, error) {
	return cbor.Marshal(tableFile{
		Version: tableVersion,
		Source:  t.source,
		Hashes:  t.hashes,
	})
}

// UnmarshalTable decodes a table written by Marshal.
func UnmarshalTable(data []byte) (*Table, error) {
	var f tableFile
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding hash table: %w", err)
	}
	if f.Version != tableVersion {
		return nil, fmt.Errorf("unsupported hash table version %d", f.Version)
	}
	return NewTable(f.Source, f.Hashes), nil
}

// LoadTable reads a pinned table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hash table: %w", err)
	}
	return UnmarshalTable(data)
}

// Save writes the table to path.
func (t *Table) Save(path string) error {
	data, err := t.Marshal()
	if err != nil {
		return fmt.Errorf("encoding hash table: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating hash table: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing hash table: %w", err)
	}
	return f.Close()
}
