//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package formats

import (
	"fmt"
	"math"
)

const (
	AmbientMagic      uint32 = 0x00D15EA5
	AmbientHeaderSize        = 12
	AmbientRecordSize        = 36
)

// RGBA is an 8-bit per channel color.
type RGBA struct {
	R, G, B, A uint8
}

// Ambient is one lighting preset. Floats are stored and written as their
// exact bit patterns.
type Ambient struct {
	ForegroundMultiplier float32
	BackgroundMultiplier float32
	Color                RGBA
	LightIntensity       float32
	Saturation           float32
	Divider              [3]float32
	BgTexLightMultiplier float32
}

// ambientRecord is the wire form of Ambient. Floats travel as raw bits so
// NaN payloads survive a round trip.
type ambientRecord struct {
	Foreground     uint32
	Background     uint32
	Color          RGBA
	LightIntensity uint32
	Saturation     uint32
	Divider        [3]uint32
	BgTexLight     uint32
}

func (r ambientRecord) decode() Ambient {
	return Ambient{
		ForegroundMultiplier: math.Float32frombits(r.Foreground),
		BackgroundMultiplier: math.Float32frombits(r.Background),
		Color:                r.Color,
		LightIntensity:       math.Float32frombits(r.LightIntensity),
		Saturation:           math.Float32frombits(r.Saturation),
		Divider: [3]float32{
			math.Float32frombits(r.Divider[0]),
			math.Float32frombits(r.Divider[1]),
			math.Float32frombits(r.Divider[2]),
		},
		BgTexLightMultiplier: math.Float32frombits(r.BgTexLight),
	}
}

func encodeAmbient(a Ambient) ambientRecord {
	return ambientRecord{
		Foreground:     math.Float32bits(a.ForegroundMultiplier),
		Background:     math.Float32bits(a.BackgroundMultiplier),
		Color:          a.Color,
		LightIntensity: math.Float32bits(a.LightIntensity),
		Saturation:     math.Float32bits(a.Saturation),
		Divider: [3]uint32{
			math.Float32bits(a.Divider[0]),
			math.Float32bits(a.Divider[1]),
			math.Float32bits(a.Divider[2]),
		},
		BgTexLight: math.Float32bits(a.BgTexLightMultiplier),
	}
}

type ambientHeader struct {
	Magic uint32
	Count uint64
}

// AmbientTable is the list of lighting presets rooms refer to by index.
type AmbientTable struct {
	Entries []Ambient
}

// ParseAmbient decodes an ambient lighting asset.
func ParseAmbient(data []byte) (*AmbientTable, error) {
	p := Buffer(data)

	var hdr ambientHeader
	if err := p.Get(&hdr); err != nil {
		return nil, fmt.Errorf("ambient header: %w", err)
	}
	if err := checkMagic("ambient", hdr.Magic, AmbientMagic); err != nil {
		return nil, err
	}
	if err := p.NeedRecords(hdr.Count, AmbientRecordSize, "ambient"); err != nil {
		return nil, err
	}

	records := make([]ambientRecord, hdr.Count)
	if err := p.Get(records); err != nil {
		return nil, fmt.Errorf("ambient entries: %w", err)
	}

	t := &AmbientTable{Entries: make([]Ambient, len(records))}
	for i, r := range records {
		t.Entries[i] = r.decode()
	}
	return t, nil
}

// Save encodes the table.
func (t *AmbientTable) Save() ([]byte, error) {
	records := make([]ambientRecord, len(t.Entries))
	for i, a := range t.Entries {
		records[i] = encodeAmbient(a)
	}

	hdr := ambientHeader{Magic: AmbientMagic, Count: uint64(len(records))}
	p := make(Buffer, 0, AmbientHeaderSize+AmbientRecordSize*len(records))
	if err := p.Put(&hdr, records); err != nil {
		return nil, err
	}
	return p, nil
}
