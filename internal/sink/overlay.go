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
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/msg555/uniondiff/internal/stat"
)

// Overlay marks deletions the way the Linux overlay filesystem does: a
// character device with major/minor 0:0. It refuses to forward a write
// that would itself look like a whiteout, since that write would silently
// turn into a deletion marker when the layer is later mounted.
type Overlay struct {
	Forwarding
}

// NewOverlay wraps backend with overlayfs whiteout semantics.
func NewOverlay(backend OutputBackend) *Overlay {
	return &Overlay{Forwarding{Backend: backend}}
}

func (o *Overlay) DeleteMarker(path string) error {
	return o.Backend.WriteOther(path, stat.Info{
		Mode: unix.S_IFCHR | 0o444,
		UID:  0,
		GID:  0,
		Size: 0,
		Rdev: 0,
	})
}

func (o *Overlay) WriteOther(path string, st stat.Info) error {
	if stat.IsCharDevice(st.Mode) && st.Rdev == 0 {
		return fmt.Errorf("refusing to write spurious whiteout character device at %q", path)
	}
	return o.Forwarding.WriteOther(path, st)
}
