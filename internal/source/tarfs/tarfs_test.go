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

package tarfs

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msg555/uniondiff/internal/stat"
)

type tarMember struct {
	hdr  *tar.Header
	data []byte
}

func buildTar(t *testing.T, members []tarMember) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		require.NoError(t, tw.WriteHeader(m.hdr))
		if len(m.data) > 0 {
			_, err := tw.Write(m.data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestLoadExplicitDirectory(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ra := buildTar(t, []tarMember{
		{hdr: &tar.Header{Name: "sub/", Typeflag: tar.TypeDir, Mode: 0o755, ModTime: now}},
		{hdr: &tar.Header{Name: "sub/f.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 5, ModTime: now}, data: []byte("hello")},
		{hdr: &tar.Header{Name: "sub/l", Typeflag: tar.TypeSymlink, Linkname: "f.txt", ModTime: now}},
	})

	root, err := Load(ra)
	require.NoError(t, err)

	entries, err := root.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sub", entries[0].Name)
	assert.Equal(t, stat.KindDirectory, entries[0].Kind)

	sub, err := root.ChildDir("sub")
	require.NoError(t, err)
	st, err := sub.Stat()
	require.NoError(t, err)
	assert.True(t, stat.KindForMode(st.Mode) == stat.KindDirectory)
	assert.True(t, sub.(interface{ ExistsInArchive() bool }).ExistsInArchive())

	subEntries, err := sub.Entries()
	require.NoError(t, err)
	byName := map[string]stat.Kind{}
	for _, e := range subEntries {
		byName[e.Name] = e.Kind
	}
	assert.Equal(t, stat.KindRegularFile, byName["f.txt"])
	assert.Equal(t, stat.KindOther, byName["l"])

	f, err := sub.ChildFile("f.txt")
	require.NoError(t, err)
	fst, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), fst.Size)

	r, err := f.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	other, err := sub.ChildOther("l")
	require.NoError(t, err)
	ost, err := other.Stat()
	require.NoError(t, err)
	assert.True(t, stat.IsSymlink(ost.Mode))
	link, err := other.Linkname()
	require.NoError(t, err)
	assert.Equal(t, "f.txt", link)
}

func TestLoadSynthesizesMissingParents(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ra := buildTar(t, []tarMember{
		{hdr: &tar.Header{Name: "a/b/c/file.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 3, ModTime: now}, data: []byte("xyz")},
	})

	root, err := Load(ra)
	require.NoError(t, err)

	rootEntries, err := root.Entries()
	require.NoError(t, err)
	require.Len(t, rootEntries, 1)
	assert.Equal(t, "a", rootEntries[0].Name)
	assert.Equal(t, stat.KindDirectory, rootEntries[0].Kind)

	a, err := root.ChildDir("a")
	require.NoError(t, err)
	ast, err := a.Stat()
	require.NoError(t, err)
	assert.Equal(t, stat.FailedInfo.Mode, ast.Mode)
	assert.False(t, a.(interface{ ExistsInArchive() bool }).ExistsInArchive())

	b, err := a.ChildDir("b")
	require.NoError(t, err)
	c, err := b.ChildDir("c")
	require.NoError(t, err)

	cEntries, err := c.Entries()
	require.NoError(t, err)
	require.Len(t, cEntries, 1)
	assert.Equal(t, "file.txt", cEntries[0].Name)
	assert.Equal(t, stat.KindRegularFile, cEntries[0].Kind)

	f, err := c.ChildFile("file.txt")
	require.NoError(t, err)
	r, err := f.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(data))
}

func TestChildDirRejectsWrongKind(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ra := buildTar(t, []tarMember{
		{hdr: &tar.Header{Name: "f.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1, ModTime: now}, data: []byte("x")},
	})

	root, err := Load(ra)
	require.NoError(t, err)

	_, err = root.ChildDir("f.txt")
	assert.Error(t, err)

	_, err = root.ChildFile("does-not-exist")
	assert.Error(t, err)
}

func TestDeviceNodeMode(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ra := buildTar(t, []tarMember{
		{hdr: &tar.Header{Name: "dev0", Typeflag: tar.TypeChar, Mode: 0o600, Devmajor: 1, Devminor: 5, ModTime: now}},
	})

	root, err := Load(ra)
	require.NoError(t, err)

	other, err := root.ChildOther("dev0")
	require.NoError(t, err)
	ost, err := other.Stat()
	require.NoError(t, err)
	assert.True(t, stat.IsCharDevice(ost.Mode))
	assert.Equal(t, uint32(1), stat.Major(ost.Rdev))
	assert.Equal(t, uint32(5), stat.Minor(ost.Rdev))
}
