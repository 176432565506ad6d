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

// Package localfs adapts a live POSIX filesystem tree to the source
// interface. Directories are held open as file descriptors and children are
// resolved with the openat(2) family so that traversal is immune to the
// directory being renamed or replaced out from under it (TOCTOU), the same
// discipline msg555/uniondiff's filelib.py uses dir_fd for on Linux.
package localfs

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/msg555/uniondiff/internal/source"
	"github.com/msg555/uniondiff/internal/stat"
)

// Open returns a DirectoryHandle rooted at path. path is resolved relative
// to the process's current directory if it is not absolute.
func Open(path string) source.DirectoryHandle {
	return &dirHandle{dirfd: unix.AT_FDCWD, name: path, fd: -1}
}

func statFromUnix(st *unix.Stat_t) stat.Info {
	return stat.Info{
		Mode:  st.Mode,
		UID:   st.Uid,
		GID:   st.Gid,
		Size:  uint64(st.Size),
		Mtime: int64(st.Mtim.Sec),
		Rdev:  uint64(st.Rdev),
	}
}

func fstatat(dirfd int, name string) (stat.Info, error) {
	var st unix.Stat_t
	if err := unix.Fstatat(dirfd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return stat.Info{}, &os.PathError{Op: "lstat", Path: name, Err: err}
	}
	return statFromUnix(&st), nil
}

func kindForDirEntry(de os.DirEntry) stat.Kind {
	switch {
	case de.Type().IsDir():
		return stat.KindDirectory
	case de.Type().IsRegular():
		return stat.KindRegularFile
	default:
		return stat.KindOther
	}
}

// dirHandle implements source.DirectoryHandle over an openat-chained file
// descriptor. The root handle uses dirfd == unix.AT_FDCWD; every child
// handle chains off its parent's descriptor once the parent has been
// opened, matching filelib.DirectoryManager.child_dir.
type dirHandle struct {
	dirfd int
	name  string

	fd   int
	file *os.File

	cachedStat *stat.Info
	entries    []source.Entry
	listed     bool
}

func (d *dirHandle) ensureOpen() error {
	if d.fd != -1 {
		return nil
	}
	fd, err := unix.Openat(d.dirfd, d.name, unix.O_DIRECTORY|unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return &os.PathError{Op: "openat", Path: d.name, Err: err}
	}
	d.fd = fd
	d.file = os.NewFile(uintptr(fd), d.name)
	return nil
}

func (d *dirHandle) Stat() (stat.Info, error) {
	if d.cachedStat != nil {
		return *d.cachedStat, nil
	}
	var info stat.Info
	var err error
	if d.fd != -1 {
		var st unix.Stat_t
		if err = unix.Fstat(d.fd, &st); err == nil {
			info = statFromUnix(&st)
		}
	} else {
		info, err = fstatat(d.dirfd, d.name)
	}
	if err != nil {
		return stat.Info{}, err
	}
	d.cachedStat = &info
	return info, nil
}

func (d *dirHandle) Entries() ([]source.Entry, error) {
	if d.listed {
		return d.entries, nil
	}
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	dirEntries, err := d.file.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	entries := make([]source.Entry, len(dirEntries))
	for i, de := range dirEntries {
		entries[i] = source.Entry{Name: de.Name(), Kind: kindForDirEntry(de)}
	}
	d.entries = entries
	d.listed = true
	return entries, nil
}

func (d *dirHandle) ChildDir(name string) (source.DirectoryHandle, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	return &dirHandle{dirfd: d.fd, name: name, fd: -1}, nil
}

func (d *dirHandle) ChildFile(name string) (source.FileHandle, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	return &fileHandle{dirfd: d.fd, name: name, fd: -1}, nil
}

func (d *dirHandle) ChildOther(name string) (source.OtherHandle, error) {
	if err := d.ensureOpen(); err != nil {
		return nil, err
	}
	return &otherHandle{dirfd: d.fd, name: name}, nil
}

func (d *dirHandle) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.fd = -1
	return err
}

// fileHandle implements source.FileHandle.
type fileHandle struct {
	dirfd int
	name  string

	fd         int
	cachedStat *stat.Info
}

func (f *fileHandle) Stat() (stat.Info, error) {
	if f.cachedStat != nil {
		return *f.cachedStat, nil
	}
	var info stat.Info
	var err error
	if f.fd != -1 {
		var st unix.Stat_t
		if err = unix.Fstat(f.fd, &st); err == nil {
			info = statFromUnix(&st)
		}
	} else {
		info, err = fstatat(f.dirfd, f.name)
	}
	if err != nil {
		return stat.Info{}, err
	}
	f.cachedStat = &info
	return info, nil
}

// Reader opens a positional reader independent of this handle's own
// descriptor. If the handle has not itself been opened yet, the reader
// opens (and owns) its own descriptor so the handle may be closed and
// reopened independently.
func (f *fileHandle) Reader() (source.Reader, error) {
	if f.fd != -1 {
		return &preadReader{fd: f.fd, owns: false}, nil
	}
	fd, err := unix.Openat(f.dirfd, f.name, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: f.name, Err: err}
	}
	return &preadReader{fd: fd, owns: true}, nil
}

func (f *fileHandle) Close() error {
	if f.fd == -1 {
		return nil
	}
	err := unix.Close(f.fd)
	f.fd = -1
	return err
}

// preadReader reads a file through pread(2), so its cursor is independent
// of any directory fd it shares with its owning handle.
type preadReader struct {
	fd     int
	owns   bool
	offset int64
}

func (r *preadReader) Read(p []byte) (int, error) {
	n, err := unix.Pread(r.fd, p, r.offset)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	r.offset += int64(n)
	return n, nil
}

func (r *preadReader) Close() error {
	if !r.owns {
		return nil
	}
	return unix.Close(r.fd)
}

// otherHandle implements source.OtherHandle for symlinks, devices, fifos
// and sockets. These are never opened with O_PATH here: every operation
// needed (stat, readlink) has an *at(2) form that takes the parent fd
// directly, so there is no descriptor to own or release.
type otherHandle struct {
	dirfd int
	name  string

	cachedStat     *stat.Info
	cachedLinkname *string
}

func (o *otherHandle) Stat() (stat.Info, error) {
	if o.cachedStat != nil {
		return *o.cachedStat, nil
	}
	info, err := fstatat(o.dirfd, o.name)
	if err != nil {
		return stat.Info{}, err
	}
	o.cachedStat = &info
	return info, nil
}

func (o *otherHandle) Linkname() (string, error) {
	if o.cachedLinkname != nil {
		return *o.cachedLinkname, nil
	}
	buf := make([]byte, 256)
	for {
		n, err := unix.Readlinkat(o.dirfd, o.name, buf)
		if err != nil {
			return "", &os.PathError{Op: "readlinkat", Path: o.name, Err: err}
		}
		if n < len(buf) {
			link := string(buf[:n])
			o.cachedLinkname = &link
			return link, nil
		}
		buf = make([]byte, len(buf)*2)
	}
}

func (o *otherHandle) Close() error {
	return nil
}
