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

// Package sink defines the write side of a diff: an OutputBackend that
// knows how to persist one kind of entry (to a tarball, to a live
// filesystem, to a log line), and a DiffOutput that adds the one concept a
// backend alone can't express — a deletion marker — by layering
// union-filesystem-specific whiteout conventions (Overlay and AUFS in this
// package) on top of a backend.
package sink

import (
	"io"

	"github.com/msg555/uniondiff/internal/stat"
)

// OutputBackend persists one path's worth of diff output. st.Mode's
// permission bits are what get written; the type nibble is informational —
// callers should not need to re-derive it.
type OutputBackend interface {
	WriteDir(path string, st stat.Info) error
	WriteFile(path string, st stat.Info, reader io.Reader) error
	WriteSymlink(path string, st stat.Info, linkname string) error
	WriteOther(path string, st stat.Info) error
}

// DiffOutput is what the differ actually writes to: an OutputBackend plus
// the ability to record that a path present in lower is absent from merged.
type DiffOutput interface {
	OutputBackend
	DeleteMarker(path string) error
}

// Forwarding is a partial DiffOutput that forwards every OutputBackend
// method to a wrapped backend unchanged. Embed it and implement only
// DeleteMarker (and override whichever Write* call needs to reject or
// rewrite something) to build a new diff convention.
type Forwarding struct {
	Backend OutputBackend
}

func (f *Forwarding) WriteDir(path string, st stat.Info) error {
	return f.Backend.WriteDir(path, st)
}

func (f *Forwarding) WriteFile(path string, st stat.Info, reader io.Reader) error {
	return f.Backend.WriteFile(path, st, reader)
}

func (f *Forwarding) WriteSymlink(path string, st stat.Info, linkname string) error {
	return f.Backend.WriteSymlink(path, st, linkname)
}

func (f *Forwarding) WriteOther(path string, st stat.Info) error {
	return f.Backend.WriteOther(path, st)
}
