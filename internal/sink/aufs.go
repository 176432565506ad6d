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

package sink

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/msg555/uniondiff/internal/stat"
)

// whiteoutPrefix is the AUFS convention for marking a deletion: an empty
// regular file named ".wh.<original name>" alongside the deleted entry.
const whiteoutPrefix = ".wh."

// AUFS marks deletions the way AUFS does: an empty regular file prefixed
// with ".wh.". It refuses to forward a write that would itself look like a
// whiteout for the same reason Overlay refuses a spurious 0:0 char device.
type AUFS struct {
	Forwarding
}

// NewAUFS wraps backend with AUFS whiteout semantics.
func NewAUFS(backend OutputBackend) *AUFS {
	return &AUFS{Forwarding{Backend: backend}}
}

// IsWhiteoutPath reports whether path's basename carries the AUFS whiteout
// prefix.
func IsWhiteoutPath(path string) bool {
	return strings.HasPrefix(basename(path), whiteoutPrefix)
}

func basename(path string) string {
	if i := strings.LastIndex(path, "/"); i != -1 {
		return path[i+1:]
	}
	return path
}

func splitPath(path string) (dir, base string) {
	if i := strings.LastIndex(path, "/"); i != -1 {
		return path[:i], path[i+1:]
	}
	return "", path
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func (a *AUFS) DeleteMarker(path string) error {
	dir, name := splitPath(path)
	return a.Backend.WriteFile(joinPath(dir, whiteoutPrefix+name), stat.Info{
		Mode: unix.S_IFREG | 0o444,
		UID:  0,
		GID:  0,
		Size: 0,
	}, bytes.NewReader(nil))
}

func (a *AUFS) WriteFile(path string, st stat.Info, reader io.Reader) error {
	if IsWhiteoutPath(path) {
		return fmt.Errorf("refusing to write spurious whiteout path %q", path)
	}
	return a.Forwarding.WriteFile(path, st, reader)
}
