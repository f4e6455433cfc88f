//
// SPDX-FileCopyrightText: Copyright (c) 2025 provide.io llc. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/provide-io/wellkit/internal/workenv"
	"github.com/provide-io/wellkit/pkg/asset/operations"
	"github.com/provide-io/wellkit/pkg/asset/operations/bundle"
	"github.com/provide-io/wellkit/pkg/asset/table"
)

var allKinds = []table.Kind{
	table.KindText,
	table.KindPNG,
	table.KindOGG,
	table.KindSprite,
	table.KindMap,
	table.KindShader,
	table.KindUVAtlas,
	table.KindFont,
	table.KindAmbient,
}

var infoCmd = &cobra.Command{
	Use:   "info <executable>",
	Short: "Show the asset table summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(args[0], newLogger())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Image checksum: %s\n", s.ImageChecksum())
		fmt.Fprintf(out, "Assets:         %d\n", s.Count())

		encrypted := 0
		for id := 0; id < s.Count(); id++ {
			if d, err := s.Descriptor(id); err == nil && d.Encrypted() {
				encrypted++
			}
		}
		fmt.Fprintf(out, "Encrypted:      %d\n", encrypted)

		for _, kind := range allKinds {
			if ids := s.IDsOfKind(kind); len(ids) > 0 {
				fmt.Fprintf(out, "  %-8s %d\n", kind, len(ids))
			}
		}
		fmt.Fprintf(out, "Overlay folder: %s\n", workenv.GetOverlayPath(workenv.GetOverlayRoot(), s.ImageChecksum()))
		if n := len(s.Warnings()); n > 0 {
			fmt.Fprintf(out, "Warnings:       %d (run verify for details)\n", n)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <executable>",
	Short: "Check that every typed asset decodes and re-encodes to its stored bytes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(args[0], newLogger())
		if err != nil {
			return err
		}

		warnings := s.Warnings()
		if len(warnings) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %d assets verified\n", s.Count())
			return nil
		}
		printWarnings(cmd.ErrOrStderr(), warnings)
		return fmt.Errorf("❌ %d verification warnings", len(warnings))
	},
}

var (
	extractDir string
	decodePNG  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <executable>",
	Short: "Write every asset to a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(args[0], newLogger())
		if err != nil {
			return err
		}

		n, err := s.ExtractAll(extractDir, decodePNG)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d assets to %s\n", n, extractDir)
		return nil
	},
}

var (
	overlayDir string
	outputDir  string
)

var applyCmd = &cobra.Command{
	Use:   "apply <executable>",
	Short: "Overlay an edited folder and persist the changed assets",
	Long: `apply loads the executable, overlays the assets found in --overlay,
and writes every asset whose bytes differ from what the output folder
already holds. The output folder defaults to the overlay folder.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(args[0], newLogger())
		if err != nil {
			return err
		}

		src := overlayDir
		if src == "" {
			src = workenv.GetOverlayPath(workenv.GetOverlayRoot(), s.ImageChecksum())
			if err := workenv.CreateOverlay(src); err != nil {
				return err
			}
		}
		dst := outputDir
		if dst == "" {
			dst = src
		}

		applied, err := s.OverlayFromFolder(src)
		if err != nil {
			return err
		}
		written, err := s.PersistToFolder(dst)
		if err != nil {
			return err
		}

		printWarnings(cmd.ErrOrStderr(), s.Warnings())
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Applied %d files from %s\n", len(applied), src)
		fmt.Fprintf(out, "Wrote %d files to %s\n", len(written), dst)
		return nil
	},
}

var pinOutput string

var pinCmd = &cobra.Command{
	Use:   "pin <executable>",
	Short: "Record the asset hashes of a known-good build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(args[0], newLogger())
		if err != nil {
			return err
		}

		pinned, err := s.Hashes()
		if err != nil {
			return err
		}
		if err := pinned.Save(pinOutput); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Pinned %d assets to %s\n", pinned.Len(), pinOutput)
		if collisions := pinned.Collisions(); len(collisions) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %d groups of assets share a hash\n", len(collisions))
		}
		return nil
	},
}

var (
	archivePath string
	chainName   string
)

func resolveChain(path string) ([]uint8, error) {
	if chainName != "" {
		return operations.ParseChain(chainName)
	}
	return operations.ChainForPath(path)
}

var packCmd = &cobra.Command{
	Use:   "pack <overlay-folder>",
	Short: "Bundle an overlay folder into a mod archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := resolveChain(archivePath)
		if err != nil {
			return err
		}

		data, names, err := bundle.Pack(args[0], ops, newLogger())
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(archivePath, data, 0644); err != nil {
			return fmt.Errorf("writing archive: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Packed %d files into %s (%s)\n", len(names), archivePath, operations.ChainName(ops))
		return nil
	},
}

var unpackDir string

var unpackCmd = &cobra.Command{
	Use:   "unpack <archive>",
	Short: "Extract a mod archive into an overlay folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := resolveChain(args[0])
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}

		names, err := bundle.Unpack(data, ops, unpackDir, newLogger())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unpacked %d files into %s\n", len(names), unpackDir)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractDir, "output", "o", "assets", "Output folder")
	extractCmd.Flags().BoolVar(&decodePNG, "decode-png", false, "Re-encode png assets through the image decoder")

	applyCmd.Flags().StringVar(&overlayDir, "overlay", "", "Folder of edited assets (default: per-build overlay folder)")
	applyCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Folder to persist into (default: the overlay folder)")

	pinCmd.Flags().StringVarP(&pinOutput, "output", "o", "hashes.cbor", "Output file")

	packCmd.Flags().StringVarP(&archivePath, "output", "o", "mod.tar.bz2", "Archive path; the extension picks the compression")
	packCmd.Flags().StringVar(&chainName, "chain", "", "Operation chain, e.g. tar.gz or tar|bzip2")

	unpackCmd.Flags().StringVarP(&unpackDir, "output", "o", ".", "Destination folder")
	unpackCmd.Flags().StringVar(&chainName, "chain", "", "Operation chain (default: from the archive extension)")
}
