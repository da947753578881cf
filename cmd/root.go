// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd is the command-line launcher: it validates the five
// positional arguments, samples the root's preferred I/O size, builds
// the block cache and operation log, and mounts the read-only overlay.
package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/orlykor/fbrfs/clock"
	"github.com/orlykor/fbrfs/internal/cache"
	"github.com/orlykor/fbrfs/internal/fsadapter"
	"github.com/orlykor/fbrfs/internal/logger"
)

const usage = `usage: fbrfs rootDir mountDir numberOfBlocks fOld fNew

  rootDir         existing directory to expose read-only
  mountDir        existing directory to mount onto
  numberOfBlocks  positive integer, total cache capacity in blocks
  fOld            fraction in [0,1] sizing the cache's old section
  fNew            fraction in [0,1] sizing the cache's new section,
                  with fOld + fNew <= 1 and both sections non-empty
`

var rootCmd = &cobra.Command{
	Use:                   "fbrfs rootDir mountDir numberOfBlocks fOld fNew",
	DisableFlagsInUseLine: true,
	Args:                  cobra.ExactArgs(5),
	SilenceUsage:          true,
	SilenceErrors:         true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := parseArgs(args)
		if err != nil {
			fmt.Fprintln(os.Stdout, usage)
			os.Exit(1)
		}
		return mount(cfg)
	},
}

// Execute runs the root command, exiting nonzero on any failure that
// was not already reported via the usage message above.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

type launchConfig struct {
	rootDir        string
	mountDir       string
	numberOfBlocks int
	fOld, fNew     float64
}

// parseArgs validates the five positional arguments and resolves rootDir
// to an absolute path. A non-nil error here always means "print usage,
// exit 1" — the caller does not inspect the error's text.
func parseArgs(args []string) (launchConfig, error) {
	var cfg launchConfig
	cfg.rootDir, cfg.mountDir = args[0], args[1]

	for _, dir := range []string{cfg.rootDir, cfg.mountDir} {
		fi, err := os.Stat(dir)
		if err != nil || !fi.IsDir() {
			return cfg, fmt.Errorf("%q is not a directory", dir)
		}
	}

	absRoot, err := filepath.Abs(cfg.rootDir)
	if err != nil {
		return cfg, fmt.Errorf("resolving %q: %w", cfg.rootDir, err)
	}
	cfg.rootDir = absRoot

	n, err := strconv.Atoi(args[2])
	if err != nil || n <= 0 {
		return cfg, fmt.Errorf("numberOfBlocks must be a positive integer, got %q", args[2])
	}
	cfg.numberOfBlocks = n

	cfg.fOld, err = strconv.ParseFloat(args[3], 64)
	if err != nil || cfg.fOld < 0 || cfg.fOld > 1 {
		return cfg, fmt.Errorf("fOld must be a real number in [0,1], got %q", args[3])
	}

	cfg.fNew, err = strconv.ParseFloat(args[4], 64)
	if err != nil || cfg.fNew < 0 || cfg.fNew > 1 {
		return cfg, fmt.Errorf("fNew must be a real number in [0,1], got %q", args[4])
	}

	if cfg.fOld+cfg.fNew > 1 {
		return cfg, fmt.Errorf("fOld + fNew must be <= 1, got %v", cfg.fOld+cfg.fNew)
	}
	if math.Floor(float64(cfg.numberOfBlocks)*cfg.fOld) <= 0 {
		return cfg, fmt.Errorf("floor(numberOfBlocks*fOld) must be > 0")
	}
	if math.Floor(float64(cfg.numberOfBlocks)*cfg.fNew) <= 0 {
		return cfg, fmt.Errorf("floor(numberOfBlocks*fNew) must be > 0")
	}

	return cfg, nil
}

// sampleBlocksize reads the preferred I/O size of the filesystem backing
// root, used as the cache's block size (see DESIGN.md).
func sampleBlocksize(root string) (int, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return 0, fmt.Errorf("sampling blocksize of %q: %w", root, err)
	}
	return int(st.Bsize), nil
}

func mount(cfg launchConfig) error {
	blocksize, err := sampleBlocksize(cfg.rootDir)
	if err != nil {
		return err
	}

	c, err := cache.New(blocksize, cfg.numberOfBlocks, cfg.fOld, cfg.fNew, cfg.rootDir)
	if err != nil {
		return fmt.Errorf("constructing cache: %w", err)
	}

	oplog, err := logger.OpenOperationLog(cfg.rootDir+"/.filesystem.log", clock.RealClock{})
	if err != nil {
		// A log that can't be opened means the mount can't record its own
		// operations, so treat it as fatal before a mount is attempted.
		fmt.Fprintln(os.Stdout, usage)
		os.Exit(1)
	}
	defer oplog.Close()

	fs, err := fsadapter.New(cfg.rootDir, c, oplog)
	if err != nil {
		return fmt.Errorf("constructing file system: %w", err)
	}

	server := fuseutil.NewFileSystemServer(fs)

	mfs, err := fuse.Mount(cfg.mountDir, server, &fuse.MountConfig{
		FSName:   "fbrfs",
		ReadOnly: true,
		Options: map[string]string{
			"allow_other": "",
		},
	})
	if err != nil {
		return fmt.Errorf("mounting %q: %w", cfg.mountDir, err)
	}

	return mfs.Join(context.Background())
}
