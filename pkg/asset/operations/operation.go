//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

// Package operations implements the byte transforms chained when overlay
// folders are packaged as mod archives.
package operations

import (
	"fmt"
)

// Operation identifiers
const (
	// No operation - raw data
	OP_NONE = 0x00

	// Bundle operations (0x01-0x0F)
	OP_TAR = 0x01 // POSIX TAR archive of an overlay folder

	// Compression operations (0x10-0x2F)
	OP_GZIP  = 0x10 // GZIP compression
	OP_BZIP2 = 0x13 // BZIP2 compression
)

// Operation is a single reversible transformation of a byte payload
type Operation interface {
	// ID returns the operation identifier (e.g., OP_GZIP)
	ID() uint8

	// Name returns the human-readable name
	Name() string

	// Apply applies the operation to input data
	Apply(input []byte) ([]byte, error)

	// Reverse reverses the operation (e.g., decompress for compression)
	Reverse(input []byte) ([]byte, error)
}

// BaseOperation provides common functionality for operations
type BaseOperation struct {
	OpID   uint8
	OpName string
}

func (o *BaseOperation) ID() uint8 {
	return o.OpID
}

func (o *BaseOperation) Name() string {
	return o.OpName
}

// Registry maps operation IDs to implementations
var Registry = make(map[uint8]Operation)

// Register registers an operation implementation
func Register(op Operation) {
	Registry[op.ID()] = op
}

// Get retrieves an operation by ID
func Get(id uint8) (Operation, error) {
	op, ok := Registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown operation: 0x%02x", id)
	}
	return op, nil
}

// GetName returns the name of an operation by ID
func GetName(id uint8) string {
	switch id {
	case OP_NONE:
		return "NONE"
	case OP_TAR:
		return "TAR"
	case OP_GZIP:
		return "GZIP"
	case OP_BZIP2:
		return "BZIP2"
	default:
		return fmt.Sprintf("UNKNOWN_%02x", id)
	}
}
