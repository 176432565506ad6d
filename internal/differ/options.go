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

import "github.com/msg555/uniondiff/internal/stat"

// Options controls how the differ compares metadata and how aggressively it
// treats I/O failures as fatal.
type Options struct {
	// OutputUID/OutputGID, when non-nil, override the uid/gid written for
	// every entry, regardless of what either operand reports.
	OutputUID *uint32
	OutputGID *uint32
	// ScrubMtime zeroes every written entry's mtime. Defaults to true: two
	// otherwise-identical layers built at different times shouldn't produce
	// a diff purely from timestamps.
	ScrubMtime bool
	// InputErrorStrict, when true (the default), turns a failure to stat,
	// list, open or read the merged/lower tree into a fatal InputError.
	// When false the differ logs the failure, treats the object as having
	// FailedInfo metadata (or, for a directory listing, as empty) and keeps
	// going.
	InputErrorStrict bool
	// OutputErrorStrict, when true (the default), turns a failure to write
	// to the output sink into a fatal OutputError.
	OutputErrorStrict bool
}

// DefaultOptions returns the options diff uses when none are supplied.
func DefaultOptions() Options {
	return Options{
		ScrubMtime:        true,
		InputErrorStrict:  true,
		OutputErrorStrict: true,
	}
}

// StatsFilter returns a copy of x with the uid/gid/mtime overrides from o
// applied. Every write to the output sink passes through this first.
func (o Options) StatsFilter(x stat.Info) stat.Info {
	if o.OutputUID != nil {
		x.UID = *o.OutputUID
	}
	if o.OutputGID != nil {
		x.GID = *o.OutputGID
	}
	if o.ScrubMtime {
		x.Mtime = 0
	}
	return x
}

// StatsDiffer reports whether x and y differ for diffing purposes, after
// applying StatsFilter to both. Size is only compared for regular files and
// symlinks; rdev is only compared for character and block devices. This
// never inspects file content — callers are responsible for the deeper byte
// comparison regular files need.
func (o Options) StatsDiffer(x, y stat.Info) bool {
	x = o.StatsFilter(x)
	y = o.StatsFilter(y)
	if x.UID != y.UID {
		return true
	}
	if x.GID != y.GID {
		return true
	}
	if x.Mode != y.Mode {
		return true
	}
	kind := stat.KindForMode(x.Mode)
	if kind == stat.KindRegularFile || stat.IsSymlink(x.Mode) {
		if x.Size != y.Size {
			return true
		}
	}
	if stat.IsCharDevice(x.Mode) || stat.IsBlockDevice(x.Mode) {
		if x.Rdev != y.Rdev {
			return true
		}
	}
	return false
}
