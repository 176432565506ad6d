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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnchangedSubtreeProducesNoOutput(t *testing.T) {
	merged := fakeDir(0o755).put("sub", fakeDir(0o755).put("f", fakeFile(0o644, "same")))
	lower := fakeDir(0o755).put("sub", fakeDir(0o755).put("f", fakeFile(0o644, "same")))

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(newFakeRoot(merged), newFakeRoot(lower)))

	assert.Empty(t, out.dirs)
	assert.Empty(t, out.files)
	assert.Empty(t, out.deletes)
}

func TestModifiedFileIsWrittenWithParentDirs(t *testing.T) {
	merged := fakeDir(0o755).put("sub", fakeDir(0o755).put("f", fakeFile(0o644, "new")))
	lower := fakeDir(0o755).put("sub", fakeDir(0o755).put("f", fakeFile(0o644, "old")))

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(newFakeRoot(merged), newFakeRoot(lower)))

	assert.Equal(t, "new", out.files["./sub/f"])
	// the directory is written before the file it contains and is not
	// written redundantly since nothing else beneath it changed.
	require.Contains(t, out.dirs, "./sub")
	assert.Empty(t, out.deletes)
}

func TestFileDeletedUnderLowerProducesDeleteMarker(t *testing.T) {
	merged := fakeDir(0o755)
	lower := fakeDir(0o755).put("gone", fakeFile(0o644, "x"))

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(newFakeRoot(merged), newFakeRoot(lower)))

	assert.Equal(t, []string{"./gone"}, out.deletes)
	assert.Empty(t, out.files)
}

func TestDirectoryAddedIsInsertedRecursively(t *testing.T) {
	merged := fakeDir(0o755).put("newdir", fakeDir(0o755).
		put("a", fakeFile(0o644, "a")).
		put("b", fakeFile(0o644, "b")))
	lower := fakeDir(0o755)

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(newFakeRoot(merged), newFakeRoot(lower)))

	assert.Contains(t, out.dirs, "./newdir")
	assert.Equal(t, "a", out.files["./newdir/a"])
	assert.Equal(t, "b", out.files["./newdir/b"])
}

func TestSymlinkTargetChangeIsDetected(t *testing.T) {
	merged := fakeDir(0o755).put("l", fakeSymlink("new-target"))
	lower := fakeDir(0o755).put("l", fakeSymlink("old-target"))

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(newFakeRoot(merged), newFakeRoot(lower)))

	assert.Equal(t, "new-target", out.symlinks["./l"])
}

func TestSymlinkSameTargetProducesNoOutput(t *testing.T) {
	merged := fakeDir(0o755).put("l", fakeSymlink("same"))
	lower := fakeDir(0o755).put("l", fakeSymlink("same"))

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(newFakeRoot(merged), newFakeRoot(lower)))

	assert.Empty(t, out.symlinks)
}

func TestKindChangeReplacesEntryWholesale(t *testing.T) {
	merged := fakeDir(0o755).put("x", fakeFile(0o644, "now a file"))
	lower := fakeDir(0o755).put("x", fakeDir(0o755).put("inner", fakeFile(0o644, "z")))

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(newFakeRoot(merged), newFakeRoot(lower)))

	assert.Equal(t, "now a file", out.files["./x"])
	assert.Empty(t, out.deletes)
}

func TestOrderingParentBeforeChild(t *testing.T) {
	merged := fakeDir(0o755).put("a", fakeDir(0o755).put("b", fakeDir(0o755).put("c", fakeFile(0o644, "x"))))
	lower := fakeDir(0o755)

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(newFakeRoot(merged), newFakeRoot(lower)))

	indexOf := map[string]int{}
	for i, p := range out.dirs {
		indexOf[p] = i
	}
	assert.Less(t, indexOf["./a"], indexOf["./a/b"])
	assert.Equal(t, "x", out.files["./a/b/c"])
}

func TestIdenticalInputsProduceEmptyDiff(t *testing.T) {
	tree := fakeDir(0o755).put("f", fakeFile(0o644, "same"))

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(newFakeRoot(tree), newFakeRoot(tree)))

	assert.Empty(t, out.dirs)
	assert.Empty(t, out.files)
	assert.Empty(t, out.deletes)
}

func TestResourceSafetyAllHandlesClosed(t *testing.T) {
	merged := fakeDir(0o755).put("sub", fakeDir(0o755).put("f", fakeFile(0o644, "x")))
	lower := fakeDir(0o755)

	rootMerged := &fakeDirHandle{n: merged}
	rootLower := &fakeDirHandle{n: lower}

	out := newRecordingSink()
	require.NoError(t, New(out, DefaultOptions()).Diff(rootMerged, rootLower))

	assert.True(t, rootMerged.closed)
	assert.True(t, rootLower.closed)
}

func TestInputErrorNonStrictSkipsInsteadOfFailing(t *testing.T) {
	mergedFile := fakeFile(0o644, "x")
	mergedFile.readErr = errors.New("injected read failure")
	merged := fakeDir(0o755).put("f", mergedFile)
	lower := fakeDir(0o755).put("f", fakeFile(0o644, "x"))

	opts := DefaultOptions()
	opts.InputErrorStrict = false

	out := newRecordingSink()
	require.NoError(t, New(out, opts).Diff(newFakeRoot(merged), newFakeRoot(lower)))
	assert.Empty(t, out.files)
}

func TestOutputUIDGIDOverride(t *testing.T) {
	merged := fakeDir(0o755).put("f", fakeFile(0o644, "x"))
	lower := fakeDir(0o755)

	uid := uint32(5)
	gid := uint32(6)
	opts := DefaultOptions()
	opts.OutputUID = &uid
	opts.OutputGID = &gid

	out := newRecordingSink()
	require.NoError(t, New(out, opts).Diff(newFakeRoot(merged), newFakeRoot(lower)))
	assert.Equal(t, "x", out.files["./f"])
	assert.Equal(t, uid, out.fileStats["./f"].UID)
	assert.Equal(t, gid, out.fileStats["./f"].GID)
}
