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

// Package backend provides concrete sink.OutputBackend implementations:
// writing the diff into a tar archive or directly onto a live filesystem.
// The dry-run logger is sink.DryRun, not part of this package.
package backend

import (
	"archive/tar"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/msg555/uniondiff/internal/stat"
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}

// Tar writes diff output as members of a tar archive. Paths are expected
// to already be '/'-separated; any other separator is treated as part of
// the file name.
type Tar struct {
	tw          *tar.Writer
	archiveRoot string
}

// NewTar wraps tw, prefixing every member name with archiveRoot (pass "."
// to write members at the archive's top level).
func NewTar(tw *tar.Writer, archiveRoot string) *Tar {
	if archiveRoot == "" {
		archiveRoot = "."
	}
	return &Tar{tw: tw, archiveRoot: archiveRoot}
}

func (t *Tar) archiveName(name string) string {
	if name == "" || name == "/" || name == "." {
		return t.archiveRoot
	}
	return path.Join(t.archiveRoot, name)
}

func (t *Tar) header(name string, st stat.Info) *tar.Header {
	hdr := &tar.Header{
		Name:    t.archiveName(name),
		Mode:    int64(stat.Perm(st.Mode)),
		ModTime: unixTime(st.Mtime),
		Uid:     int(st.UID),
		Gid:     int(st.GID),
	}
	if stat.IsBlockDevice(st.Mode) || stat.IsCharDevice(st.Mode) {
		hdr.Devmajor = int64(stat.Major(st.Rdev))
		hdr.Devminor = int64(stat.Minor(st.Rdev))
	}
	return hdr
}

func (t *Tar) WriteDir(name string, st stat.Info) error {
	hdr := t.header(name, st)
	hdr.Typeflag = tar.TypeDir
	return t.tw.WriteHeader(hdr)
}

func (t *Tar) WriteFile(name string, st stat.Info, reader io.Reader) error {
	hdr := t.header(name, st)
	hdr.Typeflag = tar.TypeReg
	hdr.Size = int64(st.Size)
	if err := t.tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(t.tw, reader)
	return err
}

func (t *Tar) WriteSymlink(name string, st stat.Info, linkname string) error {
	hdr := t.header(name, st)
	hdr.Typeflag = tar.TypeSymlink
	hdr.Linkname = linkname
	return t.tw.WriteHeader(hdr)
}

func (t *Tar) WriteOther(name string, st stat.Info) error {
	hdr := t.header(name, st)
	switch {
	case stat.IsBlockDevice(st.Mode):
		hdr.Typeflag = tar.TypeBlock
	case stat.IsCharDevice(st.Mode):
		hdr.Typeflag = tar.TypeChar
	case stat.IsFIFO(st.Mode):
		hdr.Typeflag = tar.TypeFifo
	default:
		return fmt.Errorf("backend: file type not supported by tar archives")
	}
	return t.tw.WriteHeader(hdr)
}
