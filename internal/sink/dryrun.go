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
	"io"

	"golang.org/x/sys/unix"

	"github.com/msg555/uniondiff/internal/stat"
)

// DryRun is a complete DiffOutput that writes nothing and instead logs a
// line describing every call it receives, the same format the reference
// CLI's --dry-run flag prints.
type DryRun struct {
	Out io.Writer
}

// NewDryRun returns a DiffOutput that reports to w instead of writing.
func NewDryRun(w io.Writer) *DryRun {
	return &DryRun{Out: w}
}

func (d *DryRun) desc(path string, st stat.Info) string {
	return fmt.Sprintf("%q mode=%03o owner=%d:%d", path, stat.Perm(st.Mode), st.UID, st.GID)
}

func (d *DryRun) DeleteMarker(path string) error {
	fmt.Fprintf(d.Out, "delete %q\n", path)
	return nil
}

func (d *DryRun) WriteDir(path string, st stat.Info) error {
	fmt.Fprintf(d.Out, "dir %s\n", d.desc(path, st))
	return nil
}

func (d *DryRun) WriteFile(path string, st stat.Info, reader io.Reader) error {
	fmt.Fprintf(d.Out, "file %s\n", d.desc(path, st))
	return nil
}

func (d *DryRun) WriteSymlink(path string, st stat.Info, linkname string) error {
	fmt.Fprintf(d.Out, "symlink %s target=%q\n", d.desc(path, st), linkname)
	return nil
}

func (d *DryRun) WriteOther(path string, st stat.Info) error {
	var name string
	switch {
	case stat.IsSocket(st.Mode):
		name = "sock"
	case stat.IsBlockDevice(st.Mode):
		name = "block"
	case stat.IsCharDevice(st.Mode):
		name = "char"
	case stat.IsFIFO(st.Mode):
		name = "fifo"
	}
	switch name {
	case "":
		fmt.Fprintf(d.Out, "other %s type=%#o\n", d.desc(path, st), st.Mode&unix.S_IFMT)
	case "block", "char":
		fmt.Fprintf(d.Out, "%s %s dev=%d:%d\n", name, d.desc(path, st), stat.Major(st.Rdev), stat.Minor(st.Rdev))
	default:
		fmt.Fprintf(d.Out, "%s %s\n", name, d.desc(path, st))
	}
	return nil
}
