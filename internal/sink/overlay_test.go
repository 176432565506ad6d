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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/msg555/uniondiff/internal/stat"
)

type fakeBackend struct {
	dirs     map[string]stat.Info
	files    map[string]stat.Info
	symlinks map[string]string
	others   map[string]stat.Info
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		dirs:     map[string]stat.Info{},
		files:    map[string]stat.Info{},
		symlinks: map[string]string{},
		others:   map[string]stat.Info{},
	}
}

func (b *fakeBackend) WriteDir(path string, st stat.Info) error {
	b.dirs[path] = st
	return nil
}

func (b *fakeBackend) WriteFile(path string, st stat.Info, reader io.Reader) error {
	if _, err := io.ReadAll(reader); err != nil {
		return err
	}
	b.files[path] = st
	return nil
}

func (b *fakeBackend) WriteSymlink(path string, st stat.Info, linkname string) error {
	b.symlinks[path] = linkname
	return nil
}

func (b *fakeBackend) WriteOther(path string, st stat.Info) error {
	b.others[path] = st
	return nil
}

func TestOverlayDeleteMarkerWritesZeroCharDevice(t *testing.T) {
	backend := newFakeBackend()
	o := NewOverlay(backend)
	require.NoError(t, o.DeleteMarker("a/gone"))

	st, ok := backend.others["a/gone"]
	require.True(t, ok)
	assert.True(t, stat.IsCharDevice(st.Mode))
	assert.Equal(t, uint64(0), st.Rdev)
}

func TestOverlayRejectsSpuriousWhiteout(t *testing.T) {
	o := NewOverlay(newFakeBackend())
	err := o.WriteOther("x", stat.Info{Mode: unix.S_IFCHR, Rdev: 0})
	assert.Error(t, err)
}

func TestOverlayForwardsRealCharDevice(t *testing.T) {
	backend := newFakeBackend()
	o := NewOverlay(backend)
	require.NoError(t, o.WriteOther("dev", stat.Info{Mode: unix.S_IFCHR, Rdev: stat.Makedev(1, 5)}))
	assert.Contains(t, backend.others, "dev")
}

func TestAUFSDeleteMarkerWritesWhiteoutFile(t *testing.T) {
	backend := newFakeBackend()
	a := NewAUFS(backend)
	require.NoError(t, a.DeleteMarker("a/gone"))

	_, ok := backend.files["a/.wh.gone"]
	require.True(t, ok)
}

func TestAUFSRejectsSpuriousWhiteoutFile(t *testing.T) {
	a := NewAUFS(newFakeBackend())
	err := a.WriteFile(".wh.sneaky", stat.Info{}, nil)
	assert.Error(t, err)
}

func TestAUFSIsWhiteoutPath(t *testing.T) {
	assert.True(t, IsWhiteoutPath("a/b/.wh.c"))
	assert.False(t, IsWhiteoutPath("a/b/c"))
}
