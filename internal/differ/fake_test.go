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

package differ

import (
	"io"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/msg555/uniondiff/internal/source"
	"github.com/msg555/uniondiff/internal/stat"
)

// fakeNode is a tiny in-memory tree used to exercise the differ without
// touching a real filesystem or tar archive.
type fakeNode struct {
	info     stat.Info
	data     []byte
	linkname string
	children map[string]*fakeNode
	// readErr, when set, is returned by the file handle's Reader.
	readErr error
}

func fakeDir(mode uint32) *fakeNode {
	return &fakeNode{info: stat.Info{Mode: unix.S_IFDIR | mode}, children: map[string]*fakeNode{}}
}

func fakeFile(mode uint32, data string) *fakeNode {
	return &fakeNode{info: stat.Info{Mode: unix.S_IFREG | mode, Size: uint64(len(data))}, data: []byte(data)}
}

func fakeSymlink(target string) *fakeNode {
	return &fakeNode{info: stat.Info{Mode: unix.S_IFLNK | 0o777}, linkname: target}
}

func (n *fakeNode) put(name string, child *fakeNode) *fakeNode {
	n.children[name] = child
	return n
}

func kindOf(n *fakeNode) stat.Kind {
	if n.linkname != "" || stat.IsSymlink(n.info.Mode) {
		return stat.KindOther
	}
	return stat.KindForMode(n.info.Mode)
}

type fakeDirHandle struct {
	closed bool
	n      *fakeNode
}

func newFakeRoot(n *fakeNode) source.DirectoryHandle { return &fakeDirHandle{n: n} }

func (h *fakeDirHandle) Stat() (stat.Info, error) { return h.n.info, nil }
func (h *fakeDirHandle) Close() error             { h.closed = true; return nil }

func (h *fakeDirHandle) Entries() ([]source.Entry, error) {
	names := make([]string, 0, len(h.n.children))
	for name := range h.n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]source.Entry, len(names))
	for i, name := range names {
		entries[i] = source.Entry{Name: name, Kind: kindOf(h.n.children[name])}
	}
	return entries, nil
}

func (h *fakeDirHandle) ChildDir(name string) (source.DirectoryHandle, error) {
	return &fakeDirHandle{n: h.n.children[name]}, nil
}

func (h *fakeDirHandle) ChildFile(name string) (source.FileHandle, error) {
	return &fakeFileHandle{n: h.n.children[name]}, nil
}

func (h *fakeDirHandle) ChildOther(name string) (source.OtherHandle, error) {
	return &fakeOtherHandle{n: h.n.children[name]}, nil
}

type fakeFileHandle struct{ n *fakeNode }

func (h *fakeFileHandle) Stat() (stat.Info, error) { return h.n.info, nil }
func (h *fakeFileHandle) Close() error             { return nil }
func (h *fakeFileHandle) Reader() (source.Reader, error) {
	if h.n.readErr != nil {
		return nil, h.n.readErr
	}
	return io.NopCloser(&byteSliceReader{data: h.n.data}), nil
}

type byteSliceReader struct {
	data []byte
	pos  int
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

type fakeOtherHandle struct{ n *fakeNode }

func (h *fakeOtherHandle) Stat() (stat.Info, error)  { return h.n.info, nil }
func (h *fakeOtherHandle) Close() error               { return nil }
func (h *fakeOtherHandle) Linkname() (string, error) { return h.n.linkname, nil }

// recordingSink captures every write the differ makes without interpreting
// any union-filesystem convention, so tests can assert on exactly what the
// differ decided to emit.
type recordingSink struct {
	dirs      []string
	files     map[string]string
	fileStats map[string]stat.Info
	symlinks  map[string]string
	others    []string
	deletes   []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{files: map[string]string{}, fileStats: map[string]stat.Info{}, symlinks: map[string]string{}}
}

func (s *recordingSink) WriteDir(path string, st stat.Info) error {
	s.dirs = append(s.dirs, path)
	return nil
}

func (s *recordingSink) WriteFile(path string, st stat.Info, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.files[path] = string(data)
	s.fileStats[path] = st
	return nil
}

func (s *recordingSink) WriteSymlink(path string, st stat.Info, linkname string) error {
	s.symlinks[path] = linkname
	return nil
}

func (s *recordingSink) WriteOther(path string, st stat.Info) error {
	s.others = append(s.others, path)
	return nil
}

func (s *recordingSink) DeleteMarker(path string) error {
	s.deletes = append(s.deletes, path)
	return nil
}
