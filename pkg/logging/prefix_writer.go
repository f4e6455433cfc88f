//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package logging

import (
	"bytes"
	"io"
)

// PrefixWriter wraps an io.Writer and prefixes every complete line.
// Partial lines are held until a newline arrives or Flush is called.
type PrefixWriter struct {
	prefix []byte
	writer io.Writer
	buffer bytes.Buffer
}

// NewPrefixWriter creates a new PrefixWriter.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{
		prefix: []byte(prefix),
		writer: w,
	}
}

// Write implements io.Writer.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.buffer.Write(p)

	for {
		idx := bytes.IndexByte(pw.buffer.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := pw.buffer.Next(idx + 1)
		if err := pw.emit(line); err != nil {
			return 0, err
		}
	}

	return n, nil
}

// Flush writes any buffered partial line, prefixed, without a newline.
func (pw *PrefixWriter) Flush() error {
	if pw.buffer.Len() == 0 {
		return nil
	}
	line := pw.buffer.Next(pw.buffer.Len())
	return pw.emit(line)
}

func (pw *PrefixWriter) emit(line []byte) error {
	if _, err := pw.writer.Write(pw.prefix); err != nil {
		return err
	}
	_, err := pw.writer.Write(line)
	return err
}
