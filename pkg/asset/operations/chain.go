//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package operations

import (
	"fmt"
	"strings"
)

// Named chains, by archive suffix
var namedChains = map[string][]uint8{
	"tar":     {OP_TAR},
	"tar.gz":  {OP_TAR, OP_GZIP},
	"tar.bz2": {OP_TAR, OP_BZIP2},
	"tgz":     {OP_TAR, OP_GZIP},
	"tbz2":    {OP_TAR, OP_BZIP2},
	"gzip":    {OP_GZIP},
	"bzip2":   {OP_BZIP2},
}

// Suffixes checked by ChainForPath, longest first
var archiveSuffixes = []string{"tar.bz2", "tar.gz", "tbz2", "tgz", "tar"}

// ParseChain parses a chain name ("tar.bz2") or a pipe-separated list
// ("tar|gzip").
func ParseChain(name string) ([]uint8, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if ops, ok := namedChains[name]; ok {
		return append([]uint8(nil), ops...), nil
	}

	if !strings.Contains(name, "|") {
		return nil, fmt.Errorf("unknown operation chain: %s", name)
	}

	var ops []uint8
	for _, part := range strings.Split(name, "|") {
		part = strings.TrimSpace(strings.ToUpper(part))
		if part == "" {
			continue
		}
		op, ok := namedOperations[part]
		if !ok {
			return nil, fmt.Errorf("unsupported operation: %s", part)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// ChainName renders a chain with its short name when it has one.
func ChainName(ops []uint8) string {
	for _, name := range archiveSuffixes {
		if equalOps(namedChains[name], ops) {
			return name
		}
	}
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = strings.ToLower(GetName(op))
	}
	return strings.Join(names, "|")
}

// ChainForPath picks the chain from an archive file name.
func ChainForPath(path string) ([]uint8, error) {
	lower := strings.ToLower(path)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, "."+suffix) {
			return ParseChain(suffix)
		}
	}
	return nil, fmt.Errorf("cannot tell archive format of %s", path)
}

var namedOperations = map[string]uint8{
	"TAR":   OP_TAR,
	"GZIP":  OP_GZIP,
	"BZIP2": OP_BZIP2,
}

func equalOps(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ApplyChain applies a chain of operations to data
func ApplyChain(data []byte, operations []uint8) ([]byte, error) {
	current := data

	for _, opID := range operations {
		op, err := Get(opID)
		if err != nil {
			return nil, fmt.Errorf("operation 0x%02x: %w", opID, err)
		}

		result, err := op.Apply(current)
		if err != nil {
			return nil, fmt.Errorf("applying %s: %w", op.Name(), err)
		}

		current = result
	}

	return current, nil
}

// ReverseChain reverses a chain of operations on data
func ReverseChain(data []byte, operations []uint8) ([]byte, error) {
	current := data

	// Apply operations in reverse order
	for i := len(operations) - 1; i >= 0; i-- {
		opID := operations[i]
		op, err := Get(opID)
		if err != nil {
			return nil, fmt.Errorf("operation 0x%02x: %w", opID, err)
		}

		result, err := op.Reverse(current)
		if err != nil {
			return nil, fmt.Errorf("reversing %s: %w", op.Name(), err)
		}

		current = result
	}

	return current, nil
}
