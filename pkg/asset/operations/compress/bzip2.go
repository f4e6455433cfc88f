//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"

	"github.com/provide-io/wellkit/pkg/asset/operations"
)

func init() {
	operations.Register(NewBzip2Operation())
}

// Bzip2Operation implements BZIP2 compression
type Bzip2Operation struct {
	operations.BaseOperation
}

// NewBzip2Operation creates a new BZIP2 operation
func NewBzip2Operation() *Bzip2Operation {
	return &Bzip2Operation{
		BaseOperation: operations.BaseOperation{
			OpID:   operations.OP_BZIP2,
			OpName: "BZIP2",
		},
	}
}

// Apply compresses data using BZIP2
func (o *Bzip2Operation) Apply(input []byte) ([]byte, error) {
	var buf bytes.Buffer

	bw, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: 9})
	if err != nil {
		return nil, fmt.Errorf("creating bzip2 writer: %w", err)
	}

	if _, err := bw.Write(input); err != nil {
		bw.Close()
		return nil, fmt.Errorf("writing bzip2 data: %w", err)
	}

	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("closing bzip2 writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Reverse decompresses BZIP2 data
func (o *Bzip2Operation) Reverse(input []byte) ([]byte, error) {
	br, err := bzip2.NewReader(bytes.NewReader(input), &bzip2.ReaderConfig{})
	if err != nil {
		return nil, fmt.Errorf("creating bzip2 reader: %w", err)
	}
	defer br.Close()

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("reading bzip2 data: %w", err)
	}

	return data, nil
}
