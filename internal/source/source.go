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

// Package source defines the handle-triple contract that the differ walks:
// one interface per EntryKind, implemented once against the live filesystem
// (package localfs) and once against a random-access tar archive (package
// tarfs). Neither implementation ever follows symlinks.
package source

import (
	"io"

	"github.com/msg555/uniondiff/internal/stat"
)

// Entry is one child of a directory listing, in the source's native order.
type Entry struct {
	Name string
	Kind stat.Kind
}

// Reader is the finite byte stream returned by a FileHandle. A zero-length
// read paired with a nil error never happens; EOF is always io.EOF.
type Reader = io.ReadCloser

// Handle is the subset common to every role: a cacheable stat and a single
// owned OS resource released on Close. Close must be safe to call without a
// prior successful stat or open.
type Handle interface {
	Stat() (stat.Info, error)
	Close() error
}

// DirectoryHandle is a cursor over one directory in one source tree. Entries
// returns a finite, non-restartable snapshot of the immediate children in
// the underlying source's order; "." and ".." are never included. The
// Child* factories build a handle for a named child without re-resolving
// the parent's path, which is what lets the live adapter chain openat calls
// off of an already-open directory descriptor.
type DirectoryHandle interface {
	Handle
	Entries() ([]Entry, error)
	ChildDir(name string) (DirectoryHandle, error)
	ChildFile(name string) (FileHandle, error)
	ChildOther(name string) (OtherHandle, error)
}

// FileHandle is a cursor over one regular file.
type FileHandle interface {
	Handle
	Reader() (Reader, error)
}

// OtherHandle is a cursor over anything that is neither a directory nor a
// regular file: symlinks, devices, fifos and sockets. Linkname is only
// valid when Stat().Mode identifies a symlink.
type OtherHandle interface {
	Handle
	Linkname() (string, error)
}
