//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/provide-io/wellkit/pkg/asset/cipher"
	"github.com/provide-io/wellkit/pkg/asset/integrity"
	"github.com/provide-io/wellkit/pkg/asset/store"
	"github.com/provide-io/wellkit/pkg/asset/table"
	"github.com/provide-io/wellkit/pkg/logging"
)

const version = "0.1.0"

var (
	keyFlags     []string
	pinnedPath   string
	tablePointer string
	tableCount   int
	logLevel     string
	versionFlag  bool
	rootCmd      *cobra.Command
)

func getBuildTimestamp() string {
	// Try to get vcs.time from build info
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	// Fallback to binary modification time
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "wellkit %s\n", version)
	fmt.Fprintf(w, "Built: %s\n", getBuildTimestamp())
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "wellkit",
		Short: "Extract, verify and patch the game's embedded assets",
		Long: `wellkit reads the asset table embedded in the game executable,
decrypts and decodes its maps, sprites, UV atlases and lighting tables,
and writes edited assets to an overlay folder the game loads at start.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if versionFlag {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&keyFlags, "key", nil, "Cipher key as 32 hex digits, repeatable, tried in order (env WELLKIT_KEYS)")
	flags.StringVar(&pinnedPath, "pinned", "", "CBOR hash table of a reference build")
	flags.StringVar(&tablePointer, "table-pointer", "", "Absolute address of the asset table (default: start of .data)")
	flags.IntVar(&tableCount, "table-count", table.AssetCount, "Number of asset table records")
	flags.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "V", false, "Show version information")

	rootCmd.AddCommand(infoCmd, verifyCmd, extractCmd, applyCmd, pinCmd, packCmd, unpackCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() hclog.Logger {
	level := logLevel
	if level == "" {
		level = logging.GetLogLevel()
	}
	return logging.NewLogger("wellkit", level, os.Stderr)
}

// resolveKeys reads --key, falling back to WELLKIT_KEYS.
func resolveKeys() (cipher.KeySet, error) {
	keys := keyFlags
	if len(keys) == 0 {
		if env := os.Getenv("WELLKIT_KEYS"); env != "" {
			keys = strings.Split(env, ",")
		}
	}
	return cipher.ParseKeySet(keys)
}

func resolveLayout() (table.Layout, error) {
	layout := table.DefaultLayout()
	layout.Count = tableCount
	if tablePointer != "" {
		ptr, err := strconv.ParseUint(tablePointer, 0, 64)
		if err != nil {
			return layout, fmt.Errorf("invalid --table-pointer %q: %w", tablePointer, err)
		}
		layout.TablePointer = ptr
	}
	return layout, nil
}

// readImage reads the executable and logs its checksum.
func readImage(path string, logger hclog.Logger) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open executable: %w", err)
	}
	defer f.Close()

	h := integrity.New()
	data, err := io.ReadAll(io.TeeReader(f, h))
	if err != nil {
		return nil, fmt.Errorf("read executable: %w", err)
	}

	logger.Debug("Read executable",
		"path", path,
		"size", len(data),
		"checksum", integrity.Format(h.Sum64()))
	return data, nil
}

// openStore loads the executable at path into a new store.
func openStore(path string, logger hclog.Logger) (*store.Store, error) {
	keys, err := resolveKeys()
	if err != nil {
		return nil, err
	}
	layout, err := resolveLayout()
	if err != nil {
		return nil, err
	}

	var pinned *integrity.Table
	if pinnedPath != "" {
		pinned, err = integrity.LoadTable(pinnedPath)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded pinned hashes", "path", pinnedPath, "assets", pinned.Len(), "source", pinned.Source())
	}

	image, err := readImage(path, logger)
	if err != nil {
		return nil, err
	}

	s := store.New(store.Options{
		Layout:  layout,
		Keys:    keys,
		Pinned:  pinned,
		Logger:  logger,
		Version: version,
	})
	if err := s.LoadFromImage(image); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

func printWarnings(w io.Writer, warnings []store.Warning) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "⚠️  %s\n", warning)
	}
}
