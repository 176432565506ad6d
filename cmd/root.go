// Copyright 2026 The Uniondiff Authors.
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

// Package cmd wires uniondiff's cobra/viper command line onto the
// internal differ, source and sink packages.
package cmd

import (
	"archive/tar"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/msg555/uniondiff/internal/backend"
	"github.com/msg555/uniondiff/internal/differ"
	"github.com/msg555/uniondiff/internal/logger"
	"github.com/msg555/uniondiff/internal/sink"
	"github.com/msg555/uniondiff/internal/source"
	"github.com/msg555/uniondiff/internal/source/localfs"
	"github.com/msg555/uniondiff/internal/source/tarfs"
)

var rootCmd = &cobra.Command{
	Use:   "uniondiff merged lower",
	Short: "Compute the upper layer a union filesystem would need to reproduce merged on top of lower",
	Long: `uniondiff compares two directory trees, merged and lower, and emits the
"upper" layer a union/overlay filesystem would need to apply on top of
lower to reproduce merged: every entry merged added or changed, plus a
whiteout for every entry lower has that merged no longer does.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	if err := bindFlags(rootCmd.Flags()); err != nil {
		panic(err)
	}
}

// Execute runs the root command, exiting the process with the differ's
// designated exit code on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exitCode := 1
		switch e := err.(type) {
		case *differ.SetupError:
			exitCode = e.ExitCode
		case *differ.InputError:
			exitCode = e.ExitCode
			logger.Warnf("use --input-best-effort to ignore this error")
		case *differ.OutputError:
			exitCode = e.ExitCode
			logger.Warnf("use --output-best-effort to ignore this error")
		}
		os.Exit(exitCode)
	}
}

func configureLogging(cfg Config) {
	switch {
	case cfg.Quiet:
		logger.SetLevel(logger.Error)
	case cfg.Verbose >= 2:
		logger.SetLevel(logger.Trace)
	case cfg.Verbose == 1:
		logger.SetLevel(logger.Debug)
	default:
		logger.SetLevel(logger.Info)
	}
}

func openOperand(path, inputType string) (source.DirectoryHandle, error) {
	switch inputType {
	case inputTypeFile:
		return localfs.Open(path), nil
	case inputTypeTar:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		// tarfs reads via ReaderAt, so the archive's file descriptor stays
		// open for the lifetime of the diff rather than being fully buffered.
		return tarfs.Load(&sizedReaderAt{f, info.Size()})
	default:
		return nil, fmt.Errorf("unrecognized input type %q", inputType)
	}
}

// sizedReaderAt adapts an *os.File to io.ReaderAt without pretending to
// own closing it; the caller is responsible for the underlying file.
type sizedReaderAt struct {
	f    *os.File
	size int64
}

func (s *sizedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// closer identifies an optional extra resource runDiff should close once
// the diff finishes, such as the gzip writer or output file wrapping a tar
// backend.
type closer func() error

func openOutput(cfg Config) (sink.OutputBackend, closer, error) {
	switch cfg.OutputType {
	case outputTypeFile:
		if cfg.Output == "" {
			return nil, nil, fmt.Errorf("--output is required for --output-type=file")
		}
		if _, err := os.Stat(cfg.Output); err == nil {
			if !cfg.Force {
				return nil, nil, fmt.Errorf("output path %q already exists; pass --force to overwrite", cfg.Output)
			}
		} else if !os.IsNotExist(err) {
			return nil, nil, err
		}
		// The differ's own root WriteDir call creates cfg.Output (via
		// backend.File.WriteDir on the "." entry) the same way the reference
		// CLI leaves mkdir to the first write_dir(".") call instead of
		// pre-creating the directory itself.
		//
		// Emitted permissions must match the stat exactly; a nonzero umask
		// would silently mask bits off every mkdir/open/mknod the file
		// backend performs. This is a process-wide side effect, done exactly
		// once, and deliberately not something the backend itself does.
		unix.Umask(0)
		return backend.NewFile(cfg.Output, cfg.PreserveOwners), func() error { return nil }, nil

	case outputTypeTar, outputTypeTgz:
		f, closeFile, err := openOutputWriter(cfg)
		if err != nil {
			return nil, nil, err
		}
		var w io.Writer = f
		closers := []closer{closeFile}
		if cfg.OutputType == outputTypeTgz {
			gw := gzip.NewWriter(w)
			w = gw
			closers = append(closers, gw.Close)
		}
		tw := tar.NewWriter(w)
		closers = append(closers, tw.Close)
		return backend.NewTar(tw, "."), chainClosers(closers), nil

	default:
		return nil, nil, fmt.Errorf("unrecognized output type %q", cfg.OutputType)
	}
}

func openOutputWriter(cfg Config) (*os.File, closer, error) {
	if cfg.Output == "" || cfg.Output == "-" {
		if info, err := os.Stdout.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return nil, nil, fmt.Errorf("refusing to write a tar archive to a terminal; redirect stdout or pass -o")
		}
		return os.Stdout, func() error { return nil }, nil
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !cfg.Force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(cfg.Output, flags, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func chainClosers(closers []closer) closer {
	return func() error {
		var first error
		// Close in reverse: tar writer flushes its trailer before the gzip
		// writer flushes its own, before the underlying file is closed.
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

func wrapDiffType(diffType string, out sink.OutputBackend) (sink.DiffOutput, error) {
	switch diffType {
	case diffTypeOverlay:
		return sink.NewOverlay(out), nil
	case diffTypeAUFS:
		return sink.NewAUFS(out), nil
	default:
		return nil, fmt.Errorf("unrecognized diff type %q", diffType)
	}
}

// buildDiffOutput resolves cfg into the DiffOutput the differ writes to.
// --dry-run is handled before diff-type ever enters the picture: DryRun is
// a complete DiffOutput in its own right (it reports raw write_dir/
// write_file/.../delete_marker calls, not whiteout-shaped ones), so it is
// never itself wrapped by wrapDiffType the way a real overlay/aufs backend
// is. Matches the reference CLI, which constructs DiffOutputDryRun()
// directly instead of composing it under DiffOutputOverlay/DiffOutputAufs.
func buildDiffOutput(cfg Config) (sink.DiffOutput, closer, error) {
	if cfg.DryRun {
		return sink.NewDryRun(os.Stdout), func() error { return nil }, nil
	}

	out, closeOutput, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}

	diffOutput, err := wrapDiffType(cfg.DiffType, out)
	if err != nil {
		closeOutput()
		return nil, nil, err
	}
	return diffOutput, closeOutput, nil
}

func optionsFromConfig(cfg Config) differ.Options {
	opts := differ.DefaultOptions()
	opts.ScrubMtime = !cfg.KeepMtime
	opts.InputErrorStrict = !cfg.InputBestEffort
	opts.OutputErrorStrict = !cfg.OutputBestEffort
	if cfg.OutputUID >= 0 {
		uid := uint32(cfg.OutputUID)
		opts.OutputUID = &uid
	}
	if cfg.OutputGID >= 0 {
		gid := uint32(cfg.OutputGID)
		opts.OutputGID = &gid
	}
	return opts
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return differ.NewSetupError("loading configuration", err)
	}
	configureLogging(cfg)

	merged, err := openOperand(args[0], cfg.MergedInputType)
	if err != nil {
		return differ.NewSetupError("opening merged operand", err)
	}
	defer merged.Close()

	lower, err := openOperand(args[1], cfg.LowerInputType)
	if err != nil {
		return differ.NewSetupError("opening lower operand", err)
	}
	defer lower.Close()

	diffOutput, closeOutput, err := buildDiffOutput(cfg)
	if err != nil {
		return differ.NewSetupError("opening output", err)
	}

	d := differ.New(diffOutput, optionsFromConfig(cfg)).WithLogger(logger.Logger())
	if err := d.Diff(merged, lower); err != nil {
		closeOutput()
		return err
	}
	return closeOutput()
}
