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

import "fmt"

// baseError is the base of every error the differ or CLI raises on purpose.
// ExitCode is what main() should return when a baseError reaches the top level.
type baseError struct {
	Msg      string
	ExitCode int
	Err      error
}

func (e *baseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *baseError) Unwrap() error { return e.Err }

// SetupError reports a problem establishing the diff (bad flags, an operand
// that isn't openable at all) rather than a failure encountered mid-walk.
type SetupError struct{ *baseError }

func NewSetupError(msg string, cause error) *SetupError {
	return &SetupError{&baseError{Msg: msg, ExitCode: 1, Err: cause}}
}

// InputError reports a failure reading the merged or lower tree. Whether it
// propagates or is logged and skipped is controlled by
// Options.InputErrorStrict.
type InputError struct{ *baseError }

func NewInputError(msg string, cause error) *InputError {
	return &InputError{&baseError{Msg: msg, ExitCode: 2, Err: cause}}
}

// OutputError reports a failure writing to the output sink.
type OutputError struct{ *baseError }

func NewOutputError(msg string, cause error) *OutputError {
	return &OutputError{&baseError{Msg: msg, ExitCode: 3, Err: cause}}
}
