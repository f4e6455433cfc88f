//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// NewLogger creates a new hclog logger with standard settings
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	jsonFormat := os.Getenv("WELLKIT_JSON_LOG") == "1"

	// Prefix only human-readable output
	if !jsonFormat {
		output = NewPrefixWriter("🪣 ", output)
	}

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	}

	return hclog.New(opts)
}

// GetLogLevel returns the configured log level from environment
func GetLogLevel() string {
	level := os.Getenv("WELLKIT_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	return level
}

// OrNull returns logger, or a null logger when logger is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}
