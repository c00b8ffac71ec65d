/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// mediascan walks a media root, probes durations with ffprobe, classifies
// files by subdirectory, and writes the JSON manifest consumed by
// "hearthtv import" and the rescan API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	rootDir    string
	outputFile string
	workers    int
	noProbe    bool
)

var rootCmd = &cobra.Command{
	Use:   "mediascan",
	Short: "Scan the media root and produce a JSON manifest",
	Long: `mediascan walks the media root and classifies files by their top-level
subdirectory:

  videos/     regular rotation videos
  interludes/ short clips injected between videos
  intro/      session opener
  outro/      session closer
  offair/     fallback loop asset

Interlude filenames may carry a seasonal window tag, e.g.
"snow day (12-01..02-28).mp4"; the window is recorded in the manifest.

Examples:
  mediascan --root /srv/hearth/media -o manifest.json
  mediascan --root /srv/hearth/media   # output to stdout`,
	RunE: runScan,
}

func init() {
	rootCmd.Flags().StringVar(&rootDir, "root", "", "Media root directory (required)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 4, "Parallel probe workers")
	rootCmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip ffprobe duration extraction")
	_ = rootCmd.MarkFlagRequired("root")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := &scanner{
		root:    rootDir,
		workers: workers,
		noProbe: noProbe,
	}

	fmt.Fprintf(os.Stderr, "Scanning %s with %d workers...\n", rootDir, workers)

	manifest, err := s.scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Scan complete: %d files, %d errors, %.1fs\n",
		manifest.Stats.TotalFiles, manifest.Stats.Errors, manifest.Stats.DurationSeconds)

	var out *os.File
	if outputFile != "" {
		out, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer out.Close()
	} else {
		out = os.Stdout
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}
