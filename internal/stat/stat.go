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

// Package stat defines the uniform metadata record shared by every source
// adapter, sink and output backend in uniondiff.
package stat

import "golang.org/x/sys/unix"

// Info is an immutable stat record, shared by every source adapter, sink
// and output backend. mode carries both the permission bits and the POSIX
// file-type nibble (S_IFREG, S_IFDIR, ...); rdev is only meaningful for
// character and block devices.
type Info struct {
	Mode  uint32
	UID   uint32
	GID   uint32
	Size  uint64
	Mtime int64
	Rdev  uint64
}

// FailedInfo is the sentinel stat substituted when the real stat of an
// object could not be obtained and the differ is running in best-effort
// mode. It mirrors the Python implementation's FAILED_STAT exactly so that
// downstream comparisons behave the same way.
var FailedInfo = Info{Mode: 0o777, UID: 0, GID: 0, Size: 0, Mtime: 0, Rdev: 0}

// Kind is the coarse file-type classification used to decide how the differ
// recurses: directories and regular files get dedicated handling, and
// anything else (symlinks, devices, fifos, sockets) is Other.
type Kind int

const (
	KindDirectory Kind = iota
	KindRegularFile
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindRegularFile:
		return "regular"
	default:
		return "other"
	}
}

// KindForMode classifies a raw stat mode using lstat semantics: the type
// nibble alone decides directory vs. regular-file vs. everything else.
// Symlinks are deliberately not followed and fall into KindOther.
func KindForMode(mode uint32) Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return KindDirectory
	case unix.S_IFREG:
		return KindRegularFile
	default:
		return KindOther
	}
}

// IsSymlink reports whether mode's type nibble is S_IFLNK.
func IsSymlink(mode uint32) bool {
	return mode&unix.S_IFMT == unix.S_IFLNK
}

// IsCharDevice reports whether mode's type nibble is S_IFCHR.
func IsCharDevice(mode uint32) bool {
	return mode&unix.S_IFMT == unix.S_IFCHR
}

// IsBlockDevice reports whether mode's type nibble is S_IFBLK.
func IsBlockDevice(mode uint32) bool {
	return mode&unix.S_IFMT == unix.S_IFBLK
}

// IsFIFO reports whether mode's type nibble is S_IFIFO.
func IsFIFO(mode uint32) bool {
	return mode&unix.S_IFMT == unix.S_IFIFO
}

// IsSocket reports whether mode's type nibble is S_IFSOCK.
func IsSocket(mode uint32) bool {
	return mode&unix.S_IFMT == unix.S_IFSOCK
}

// Perm returns just the permission bits of mode, stripping the file-type
// nibble.
func Perm(mode uint32) uint32 {
	return mode &^ uint32(unix.S_IFMT)
}

// Makedev composes a raw rdev value from its major/minor components, the
// same packing archive/tar and the kernel use.
func Makedev(major, minor uint32) uint64 {
	return unix.Mkdev(major, minor)
}

// Major extracts the device major number from a raw rdev value.
func Major(rdev uint64) uint32 {
	return unix.Major(rdev)
}

// Minor extracts the device minor number from a raw rdev value.
func Minor(rdev uint64) uint32 {
	return unix.Minor(rdev)
}
