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

package backend

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/msg555/uniondiff/internal/stat"
)

// File writes diff output directly onto a live filesystem rooted at
// BasePath. When PreserveOwners is set it chowns every object it creates
// to the uid/gid recorded in the diff — this requires running as root (or
// with CAP_CHOWN) on most systems, the same requirement the Python
// implementation documents for os.lchown/os.fchown.
type File struct {
	BasePath       string
	PreserveOwners bool
}

// NewFile returns a filesystem backend rooted at basePath.
func NewFile(basePath string, preserveOwners bool) *File {
	return &File{BasePath: basePath, PreserveOwners: preserveOwners}
}

func (f *File) fullPath(name string) string {
	return filepath.Clean(filepath.Join(f.BasePath, name))
}

func (f *File) fixupOwners(fullPath string, st stat.Info, fd int) error {
	if !f.PreserveOwners {
		return nil
	}
	var err error
	if fd == -1 {
		err = os.Lchown(fullPath, int(st.UID), int(st.GID))
	} else {
		err = unix.Fchown(fd, int(st.UID), int(st.GID))
	}
	if err != nil {
		return fmt.Errorf("backend: failed to chown object: %w", err)
	}
	return nil
}

func (f *File) WriteDir(name string, st stat.Info) error {
	full := f.fullPath(name)
	if err := os.Mkdir(full, os.FileMode(stat.Perm(st.Mode))); err != nil {
		return err
	}
	return f.fixupOwners(full, st, -1)
}

func (f *File) WriteFile(name string, st stat.Info, reader io.Reader) error {
	full := f.fullPath(name)
	fd, err := unix.Open(full, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, uint32(stat.Perm(st.Mode)))
	if err != nil {
		return &os.PathError{Op: "open", Path: full, Err: err}
	}
	out := os.NewFile(uintptr(fd), full)
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		return err
	}
	if err := f.fixupOwners(full, st, fd); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (f *File) WriteSymlink(name string, st stat.Info, linkname string) error {
	full := f.fullPath(name)
	if err := os.Symlink(linkname, full); err != nil {
		return err
	}
	return f.fixupOwners(full, st, -1)
}

func (f *File) WriteOther(name string, st stat.Info) error {
	full := f.fullPath(name)
	switch {
	case stat.IsBlockDevice(st.Mode), stat.IsCharDevice(st.Mode), stat.IsFIFO(st.Mode):
		if err := unix.Mknod(full, st.Mode, int(st.Rdev)); err != nil {
			return &os.PathError{Op: "mknod", Path: full, Err: err}
		}
	case stat.IsSocket(st.Mode):
		l, err := net.Listen("unix", full)
		if err != nil {
			return err
		}
		if err := l.Close(); err != nil {
			return err
		}
		if err := os.Chmod(full, os.FileMode(stat.Perm(st.Mode))); err != nil {
			return err
		}
	default:
		return fmt.Errorf("backend: unsupported file type")
	}
	return f.fixupOwners(full, st, -1)
}
