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

// Package differ walks two directory trees in lock-step and reports
// everything present in merged that isn't identically present in lower:
// the upper layer a union/overlay filesystem would have produced to
// combine lower with merged.
package differ

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/msg555/uniondiff/internal/sink"
	"github.com/msg555/uniondiff/internal/source"
	"github.com/msg555/uniondiff/internal/stat"
)

const chunkSize = 1 << 16

// pendingDir is a directory whose write_dir has been deferred until some
// descendant is shown to actually differ.
type pendingDir struct {
	path string
	info stat.Info
}

// Differ recursively compares a merged and a lower directory tree and
// writes the result to a sink.DiffOutput. A Differ is single-use: call
// Diff once.
type Differ struct {
	output  sink.DiffOutput
	options Options
	logger  *slog.Logger

	pending []pendingDir
}

// New builds a Differ that writes to output under the given options.
func New(output sink.DiffOutput, options Options) *Differ {
	return &Differ{output: output, options: options, logger: slog.Default()}
}

// WithLogger overrides the logger used for warnings about skipped or
// best-effort-ignored errors.
func (d *Differ) WithLogger(logger *slog.Logger) *Differ {
	d.logger = logger
	return d
}

func joinPath(dir, name string) string {
	if dir == "." {
		return "./" + name
	}
	return dir + "/" + name
}

// Diff walks merged against lower and writes the upper layer to d's output.
// Both handles are closed by the time Diff returns, successfully or not.
// The root is always named "." per the sink interface's path convention.
func (d *Differ) Diff(merged, lower source.DirectoryHandle) error {
	return d.diffDirs(".", merged, lower)
}

func (d *Differ) inputError(operand, path, verb string, cause error) error {
	if d.options.InputErrorStrict {
		return NewInputError(fmt.Sprintf("error %s path=%q of %s", verb, path, operand), cause)
	}
	d.logger.Warn("ignoring input error", "operand", operand, "path", path, "verb", verb, "err", cause)
	return nil
}

func (d *Differ) inputErrorMerged(path, verb string, cause error) error {
	return d.inputError("merged", path, verb, cause)
}

func (d *Differ) inputErrorLower(path, verb string, cause error) error {
	return d.inputError("lower", path, verb, cause)
}

func (d *Differ) outputError(path, verb string, cause error) error {
	if d.options.OutputErrorStrict {
		return NewOutputError(fmt.Sprintf("error %s path=%q", verb, path), cause)
	}
	d.logger.Warn("ignoring output error", "path", path, "verb", verb, "err", cause)
	return nil
}

func (d *Differ) diffDirs(archivePath string, merged, lower source.DirectoryHandle) error {
	defer merged.Close()
	defer lower.Close()

	d.logger.Debug("diffing dirs", "path", archivePath)

	lowerMap := map[string]stat.Kind{}
	lowerStat := stat.FailedInfo
	if entries, err := lower.Entries(); err != nil {
		if ierr := d.inputErrorLower(archivePath, "listing", err); ierr != nil {
			return ierr
		}
	} else {
		for _, e := range entries {
			lowerMap[e.Name] = e.Kind
		}
		if st, err := lower.Stat(); err != nil {
			if ierr := d.inputErrorLower(archivePath, "listing", err); ierr != nil {
				return ierr
			}
		} else {
			lowerStat = st
		}
	}

	var mergedEntries []source.Entry
	mergedStat := stat.FailedInfo
	if entries, err := merged.Entries(); err != nil {
		if ierr := d.inputErrorMerged(archivePath, "listing", err); ierr != nil {
			return ierr
		}
		d.logger.Warn("treating as empty", "path", archivePath)
	} else {
		mergedEntries = entries
		if st, err := merged.Stat(); err != nil {
			if ierr := d.inputErrorMerged(archivePath, "listing", err); ierr != nil {
				return ierr
			}
		} else {
			mergedStat = st
		}
	}

	// A directory is only written once something beneath it is known to
	// differ, so push it onto the pending stack now and flush it (and
	// everything still pending above it) lazily, right before the first
	// real write under it.
	d.pending = append(d.pending, pendingDir{path: archivePath, info: mergedStat})
	if d.options.StatsDiffer(mergedStat, lowerStat) {
		if err := d.flushPending(); err != nil {
			return err
		}
	}

	for _, entry := range mergedEntries {
		cpath := joinPath(archivePath, entry.Name)
		lowerKind, lowerPresent := lowerMap[entry.Name]
		delete(lowerMap, entry.Name)

		switch entry.Kind {
		case stat.KindDirectory:
			mergedChild, err := merged.ChildDir(entry.Name)
			if err != nil {
				if ierr := d.inputErrorMerged(cpath, "opening", err); ierr != nil {
					return ierr
				}
				continue
			}
			if !lowerPresent || lowerKind != stat.KindDirectory {
				if err := d.insertDir(cpath, mergedChild); err != nil {
					return err
				}
				continue
			}
			lowerChild, err := lower.ChildDir(entry.Name)
			if err != nil {
				if ierr := d.inputErrorLower(cpath, "opening", err); ierr != nil {
					return ierr
				}
				if err := d.insertDir(cpath, mergedChild); err != nil {
					return err
				}
				continue
			}
			if err := d.diffDirs(cpath, mergedChild, lowerChild); err != nil {
				return err
			}

		case stat.KindRegularFile:
			mergedChild, err := merged.ChildFile(entry.Name)
			if err != nil {
				if ierr := d.inputErrorMerged(cpath, "opening", err); ierr != nil {
					return ierr
				}
				continue
			}
			if !lowerPresent || lowerKind != stat.KindRegularFile {
				if err := d.insertFile(cpath, mergedChild); err != nil {
					return err
				}
				continue
			}
			lowerChild, err := lower.ChildFile(entry.Name)
			if err != nil {
				if ierr := d.inputErrorLower(cpath, "opening", err); ierr != nil {
					return ierr
				}
				if err := d.insertFile(cpath, mergedChild); err != nil {
					return err
				}
				continue
			}
			if err := d.diffFiles(cpath, mergedChild, lowerChild); err != nil {
				return err
			}

		default:
			mergedChild, err := merged.ChildOther(entry.Name)
			if err != nil {
				if ierr := d.inputErrorMerged(cpath, "opening", err); ierr != nil {
					return ierr
				}
				continue
			}
			if !lowerPresent || lowerKind != stat.KindOther {
				if err := d.insertOther(cpath, mergedChild); err != nil {
					return err
				}
				continue
			}
			lowerChild, err := lower.ChildOther(entry.Name)
			if err != nil {
				if ierr := d.inputErrorLower(cpath, "opening", err); ierr != nil {
					return ierr
				}
				if err := d.insertOther(cpath, mergedChild); err != nil {
					return err
				}
				continue
			}
			if err := d.diffOther(cpath, mergedChild, lowerChild); err != nil {
				return err
			}
		}
	}

	// Anything left in lowerMap was in lower but not in merged: deleted.
	for name := range lowerMap {
		if err := d.flushPending(); err != nil {
			return err
		}
		if err := d.output.DeleteMarker(joinPath(archivePath, name)); err != nil {
			if oerr := d.outputError(archivePath, "creating delete marker", err); oerr != nil {
				return oerr
			}
		}
	}

	if len(d.pending) > 0 {
		d.pending = d.pending[:len(d.pending)-1]
	}
	return nil
}

func readChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, nil
	}
	return n, err
}

func (d *Differ) diffFiles(archivePath string, merged, lower source.FileHandle) error {
	defer merged.Close()
	defer lower.Close()

	d.logger.Debug("diffing files", "path", archivePath)

	mergedStat, err := merged.Stat()
	if err != nil {
		if ierr := d.inputErrorMerged(archivePath, "accessing", err); ierr != nil {
			return ierr
		}
		d.logger.Warn("skipping file", "path", archivePath)
		return nil
	}

	lowerStat := stat.FailedInfo
	if st, err := lower.Stat(); err != nil {
		if ierr := d.inputErrorLower(archivePath, "accessing", err); ierr != nil {
			return ierr
		}
	} else {
		lowerStat = st
	}

	if d.options.StatsDiffer(mergedStat, lowerStat) {
		return d.insertFile(archivePath, merged)
	}

	mergedReader, err := merged.Reader()
	if err != nil {
		if ierr := d.inputErrorMerged(archivePath, "opening", err); ierr != nil {
			return ierr
		}
		d.logger.Warn("skipping file", "path", archivePath)
		return nil
	}
	defer mergedReader.Close()

	var lowerReader io.ReadCloser
	if r, err := lower.Reader(); err != nil {
		if ierr := d.inputErrorLower(archivePath, "opening", err); ierr != nil {
			return ierr
		}
	} else {
		lowerReader = r
		defer lowerReader.Close()
	}

	mergedBuf := make([]byte, chunkSize)
	lowerBuf := make([]byte, chunkSize)
	differs := lowerReader == nil
	for {
		mn, merr := readChunk(mergedReader, mergedBuf)
		if merr != nil {
			if ierr := d.inputErrorMerged(archivePath, "reading", merr); ierr != nil {
				return ierr
			}
			d.logger.Warn("skipping file", "path", archivePath)
			return nil
		}

		ln := 0
		if !differs {
			var lerr error
			ln, lerr = readChunk(lowerReader, lowerBuf)
			if lerr != nil {
				if ierr := d.inputErrorLower(archivePath, "reading", lerr); ierr != nil {
					return ierr
				}
				differs = true
			}
		}

		if !differs && (mn != ln || !bytes.Equal(mergedBuf[:mn], lowerBuf[:ln])) {
			differs = true
		}
		if differs || mn == 0 {
			break
		}
	}

	if differs {
		return d.insertFile(archivePath, merged)
	}
	return nil
}

func (d *Differ) diffOther(archivePath string, merged, lower source.OtherHandle) error {
	defer merged.Close()
	defer lower.Close()

	d.logger.Debug("diffing other", "path", archivePath)

	mergedStat, err := merged.Stat()
	if err != nil {
		if ierr := d.inputErrorMerged(archivePath, "accessing", err); ierr != nil {
			return ierr
		}
		d.logger.Warn("skipping object", "path", archivePath)
		return nil
	}
	var mergedLink string
	if stat.IsSymlink(mergedStat.Mode) {
		mergedLink, err = merged.Linkname()
		if err != nil {
			if ierr := d.inputErrorMerged(archivePath, "accessing", err); ierr != nil {
				return ierr
			}
			d.logger.Warn("skipping object", "path", archivePath)
			return nil
		}
	}

	lowerStat := stat.FailedInfo
	var lowerLink string
	if st, err := lower.Stat(); err != nil {
		if ierr := d.inputErrorLower(archivePath, "accessing", err); ierr != nil {
			return ierr
		}
	} else {
		lowerStat = st
		if stat.IsSymlink(lowerStat.Mode) {
			if ln, err := lower.Linkname(); err != nil {
				if ierr := d.inputErrorLower(archivePath, "accessing", err); ierr != nil {
					return ierr
				}
			} else {
				lowerLink = ln
			}
		}
	}

	if !d.options.StatsDiffer(mergedStat, lowerStat) {
		if !stat.IsSymlink(mergedStat.Mode) {
			return nil
		}
		if mergedLink == lowerLink {
			return nil
		}
	}

	return d.insertOther(archivePath, merged)
}

func (d *Differ) flushPending() error {
	for _, p := range d.pending {
		d.logger.Debug("inserting directory metadata", "path", p.path)
		if err := d.output.WriteDir(p.path, d.options.StatsFilter(p.info)); err != nil {
			if oerr := d.outputError(p.path, "creating dir", err); oerr != nil {
				return oerr
			}
		}
	}
	d.pending = d.pending[:0]
	return nil
}

func (d *Differ) insertDir(archivePath string, obj source.DirectoryHandle) error {
	defer obj.Close()
	if err := d.flushPending(); err != nil {
		return err
	}
	d.logger.Debug("recursively inserting directory", "path", archivePath)

	objStat := stat.FailedInfo
	var entries []source.Entry
	if st, err := obj.Stat(); err != nil {
		if ierr := d.inputErrorMerged(archivePath, "listing", err); ierr != nil {
			return ierr
		}
	} else {
		objStat = st
		if es, err := obj.Entries(); err != nil {
			if ierr := d.inputErrorMerged(archivePath, "listing", err); ierr != nil {
				return ierr
			}
		} else {
			entries = es
		}
	}

	if err := d.output.WriteDir(archivePath, d.options.StatsFilter(objStat)); err != nil {
		if oerr := d.outputError(archivePath, "creating dir", err); oerr != nil {
			return oerr
		}
	}

	for _, entry := range entries {
		cpath := joinPath(archivePath, entry.Name)
		switch entry.Kind {
		case stat.KindDirectory:
			child, err := obj.ChildDir(entry.Name)
			if err != nil {
				if ierr := d.inputErrorMerged(cpath, "opening", err); ierr != nil {
					return ierr
				}
				continue
			}
			if err := d.insertDir(cpath, child); err != nil {
				return err
			}
		case stat.KindRegularFile:
			child, err := obj.ChildFile(entry.Name)
			if err != nil {
				if ierr := d.inputErrorMerged(cpath, "opening", err); ierr != nil {
					return ierr
				}
				continue
			}
			if err := d.insertFile(cpath, child); err != nil {
				return err
			}
		default:
			child, err := obj.ChildOther(entry.Name)
			if err != nil {
				if ierr := d.inputErrorMerged(cpath, "opening", err); ierr != nil {
					return ierr
				}
				continue
			}
			if err := d.insertOther(cpath, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Differ) insertFile(archivePath string, obj source.FileHandle) error {
	defer obj.Close()
	if err := d.flushPending(); err != nil {
		return err
	}
	d.logger.Debug("inserting file", "path", archivePath)

	objStat, err := obj.Stat()
	if err != nil {
		if ierr := d.inputErrorMerged(archivePath, "opening", err); ierr != nil {
			return ierr
		}
		d.logger.Warn("skipping file", "path", archivePath)
		return nil
	}
	reader, err := obj.Reader()
	if err != nil {
		if ierr := d.inputErrorMerged(archivePath, "opening", err); ierr != nil {
			return ierr
		}
		d.logger.Warn("skipping file", "path", archivePath)
		return nil
	}
	defer reader.Close()

	if err := d.output.WriteFile(archivePath, d.options.StatsFilter(objStat), reader); err != nil {
		if oerr := d.outputError(archivePath, "writing file", err); oerr != nil {
			return oerr
		}
	}
	return nil
}

func (d *Differ) insertOther(archivePath string, obj source.OtherHandle) error {
	defer obj.Close()
	if err := d.flushPending(); err != nil {
		return err
	}
	d.logger.Debug("inserting other", "path", archivePath)

	objStat, err := obj.Stat()
	if err != nil {
		if ierr := d.inputErrorMerged(archivePath, "accessing", err); ierr != nil {
			return ierr
		}
		d.logger.Warn("skipping object", "path", archivePath)
		return nil
	}

	if stat.IsSymlink(objStat.Mode) {
		linkname, err := obj.Linkname()
		if err != nil {
			if ierr := d.inputErrorMerged(archivePath, "accessing", err); ierr != nil {
				return ierr
			}
			d.logger.Warn("skipping object", "path", archivePath)
			return nil
		}
		if err := d.output.WriteSymlink(archivePath, d.options.StatsFilter(objStat), linkname); err != nil {
			if oerr := d.outputError(archivePath, "writing symlink", err); oerr != nil {
				return oerr
			}
		}
		return nil
	}

	if err := d.output.WriteOther(archivePath, d.options.StatsFilter(objStat)); err != nil {
		if oerr := d.outputError(archivePath, "writing other", err); oerr != nil {
			return oerr
		}
	}
	return nil
}
