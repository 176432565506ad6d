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

// Package tarfs adapts a random-access tar archive to the source interface.
// Construction is a single linear pass over the archive that indexes every
// member by its normalized path and records, for regular files, the byte
// offset of its content within the backing io.ReaderAt so that a reader can
// be re-opened later without rescanning the archive — the same trick
// msg555/uniondiff's filelib_tar.py gets from tarfile's own random-access
// support, and the one github.com/dpeckett/archivefs uses for a Go tar.Reader
// fed from an io.ReaderAt.
package tarfs

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/msg555/uniondiff/internal/source"
	"github.com/msg555/uniondiff/internal/stat"
)

// syntheticInfo is the sentinel StatInfo reported for directories that were
// materialized because some member's path named them as a prefix, without
// an explicit directory entry in the archive.
var syntheticInfo = stat.Info{Mode: 0o777, UID: 0, GID: 0, Size: 0, Mtime: 0, Rdev: 0}

type childEntry struct {
	name string
	kind stat.Kind
}

type node struct {
	path          string
	hdr           *tar.Header
	contentOffset int64
	synthetic     bool
}

// Archive is the parent->children index built by Load.
type Archive struct {
	ra       io.ReaderAt
	info     map[string]*node
	children map[string][]childEntry
}

// offsetReader turns a random-access io.ReaderAt into the sequential
// io.Reader archive/tar.Reader wants, while tracking how many bytes have
// been consumed so the position right after a header is the content's
// on-disk offset.
type offsetReader struct {
	ra     io.ReaderAt
	offset int64
}

func (r *offsetReader) Read(p []byte) (int, error) {
	n, err := r.ra.ReadAt(p, r.offset)
	r.offset += int64(n)
	return n, err
}

func normalizeName(name string) string {
	return path.Clean(path.Join("/", name))
}

func splitPath(p string) (dir, base string) {
	if p == "/" {
		return "/", ""
	}
	i := strings.LastIndex(p, "/")
	dir = p[:i]
	if dir == "" {
		dir = "/"
	}
	return dir, p[i+1:]
}

func kindForTypeflag(typeflag byte) stat.Kind {
	switch typeflag {
	case tar.TypeDir:
		return stat.KindDirectory
	case tar.TypeReg, tar.TypeRegA, tar.TypeGNUSparse:
		return stat.KindRegularFile
	default:
		return stat.KindOther
	}
}

func modeForTypeflag(typeflag byte) (uint32, error) {
	switch typeflag {
	case tar.TypeReg, tar.TypeRegA, tar.TypeGNUSparse:
		return unix.S_IFREG, nil
	case tar.TypeSymlink:
		return unix.S_IFLNK, nil
	case tar.TypeDir:
		return unix.S_IFDIR, nil
	case tar.TypeFifo:
		return unix.S_IFIFO, nil
	case tar.TypeChar:
		return unix.S_IFCHR, nil
	case tar.TypeBlock:
		return unix.S_IFBLK, nil
	default:
		return 0, fmt.Errorf("tarfs: unsupported tar member type %q", typeflag)
	}
}

func infoFromHeader(hdr *tar.Header) (stat.Info, error) {
	typeBits, err := modeForTypeflag(hdr.Typeflag)
	if err != nil {
		return stat.Info{}, err
	}
	mode := typeBits | (uint32(hdr.Mode) & 0o7777)
	return stat.Info{
		Mode:  mode,
		UID:   uint32(hdr.Uid),
		GID:   uint32(hdr.Gid),
		Size:  uint64(hdr.Size),
		Mtime: hdr.ModTime.Unix(),
		Rdev:  stat.Makedev(uint32(hdr.Devmajor), uint32(hdr.Devminor)),
	}, nil
}

func (a *Archive) insertChild(p string, kind stat.Kind) {
	parent, name := splitPath(p)
	a.children[parent] = append(a.children[parent], childEntry{name: name, kind: kind})
}

// Load indexes the archive in a single linear pass and returns a
// DirectoryHandle rooted at "/". ra must support random access; the tar
// content itself is still read sequentially exactly once during Load.
func Load(ra io.ReaderAt) (source.DirectoryHandle, error) {
	a := &Archive{
		ra:       ra,
		info:     map[string]*node{"/": {path: "/", synthetic: true}},
		children: map[string][]childEntry{},
	}

	r := &offsetReader{ra: ra}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tarfs: reading archive: %w", err)
		}

		p := normalizeName(hdr.Name)
		if p == "/" {
			a.info["/"] = &node{path: "/", hdr: hdr}
			continue
		}

		contentOffset := r.offset
		n := &node{path: p, hdr: hdr, contentOffset: contentOffset}
		a.info[p] = n
		a.insertChild(p, kindForTypeflag(hdr.Typeflag))

		parent, _ := splitPath(p)
		for parent != "/" {
			if _, ok := a.info[parent]; ok {
				break
			}
			a.info[parent] = &node{path: parent, synthetic: true}
			a.insertChild(parent, stat.KindDirectory)
			parent, _ = splitPath(parent)
		}
	}
	return &dirHandle{a: a, path: "/"}, nil
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

type dirHandle struct {
	a    *Archive
	path string
}

func (d *dirHandle) node() *node { return d.a.info[d.path] }

// ExistsInArchive reports whether this directory was an explicit member of
// the archive, as opposed to synthesized because a deeper path referenced
// it.
func (d *dirHandle) ExistsInArchive() bool {
	return !d.node().synthetic
}

func (d *dirHandle) Stat() (stat.Info, error) {
	n := d.node()
	if n.synthetic {
		return syntheticInfo, nil
	}
	return infoFromHeader(n.hdr)
}

func (d *dirHandle) Entries() ([]source.Entry, error) {
	kids := d.a.children[d.path]
	out := make([]source.Entry, len(kids))
	for i, c := range kids {
		out[i] = source.Entry{Name: c.name, Kind: c.kind}
	}
	return out, nil
}

func (d *dirHandle) resolve(name string, want stat.Kind) (*node, error) {
	p := joinPath(d.path, name)
	n, ok := d.a.info[p]
	if !ok {
		return nil, fmt.Errorf("tarfs: %s: not present in archive", p)
	}
	gotKind := stat.KindDirectory
	if !n.synthetic {
		gotKind = kindForTypeflag(n.hdr.Typeflag)
	}
	if gotKind != want {
		return nil, fmt.Errorf("tarfs: %s: expected %s, found %s", p, want, gotKind)
	}
	return n, nil
}

func (d *dirHandle) ChildDir(name string) (source.DirectoryHandle, error) {
	n, err := d.resolve(name, stat.KindDirectory)
	if err != nil {
		return nil, err
	}
	return &dirHandle{a: d.a, path: n.path}, nil
}

func (d *dirHandle) ChildFile(name string) (source.FileHandle, error) {
	n, err := d.resolve(name, stat.KindRegularFile)
	if err != nil {
		return nil, err
	}
	return &fileHandle{a: d.a, n: n}, nil
}

func (d *dirHandle) ChildOther(name string) (source.OtherHandle, error) {
	n, err := d.resolve(name, stat.KindOther)
	if err != nil {
		return nil, err
	}
	return &otherHandle{n: n}, nil
}

func (d *dirHandle) Close() error { return nil }

type fileHandle struct {
	a *Archive
	n *node
}

func (f *fileHandle) Stat() (stat.Info, error) { return infoFromHeader(f.n.hdr) }

func (f *fileHandle) Reader() (source.Reader, error) {
	return io.NopCloser(io.NewSectionReader(f.a.ra, f.n.contentOffset, f.n.hdr.Size)), nil
}

func (f *fileHandle) Close() error { return nil }

type otherHandle struct {
	n *node
}

func (o *otherHandle) Stat() (stat.Info, error) { return infoFromHeader(o.n.hdr) }

func (o *otherHandle) Linkname() (string, error) {
	if o.n.hdr.Typeflag != tar.TypeSymlink {
		return "", nil
	}
	return o.n.hdr.Linkname, nil
}

func (o *otherHandle) Close() error { return nil }
