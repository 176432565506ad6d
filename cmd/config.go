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

package cmd

// Config is the fully resolved set of options the CLI runs with, after
// flags, environment variables (UNIONDIFF_* via viper) and defaults have
// all been merged. mapstructure tags are what let viper.Unmarshal decode
// directly into this struct.
type Config struct {
	DiffType         string `mapstructure:"diff-type"`
	OutputType       string `mapstructure:"output-type"`
	MergedInputType  string `mapstructure:"merged-input-type"`
	LowerInputType   string `mapstructure:"lower-input-type"`
	Output           string `mapstructure:"output"`
	Verbose          int    `mapstructure:"verbose"`
	Quiet            bool   `mapstructure:"quiet"`
	Force            bool   `mapstructure:"force"`
	DryRun           bool   `mapstructure:"dry-run"`
	InputBestEffort  bool   `mapstructure:"input-best-effort"`
	OutputBestEffort bool   `mapstructure:"output-best-effort"`
	PreserveOwners   bool   `mapstructure:"preserve-owners"`
	OutputUID        int    `mapstructure:"output-uid"`
	OutputGID        int    `mapstructure:"output-gid"`
	KeepMtime        bool   `mapstructure:"keep-mtime"`
}

const (
	diffTypeOverlay = "overlay"
	diffTypeAUFS    = "aufs"

	outputTypeTar  = "tar"
	outputTypeTgz  = "tgz"
	outputTypeFile = "file"

	// inputTypeFile and inputTypeTar are the two --merged-input-type/
	// --lower-input-type choices, matching the original CLI's
	// choices=("file", "tar") exactly: "file" means read the operand as a
	// live filesystem path, not that it must be a single regular file.
	inputTypeFile = "file"
	inputTypeTar  = "tar"
)

func defaultConfig() Config {
	return Config{
		DiffType:        diffTypeOverlay,
		OutputType:      outputTypeTar,
		MergedInputType: inputTypeFile,
		LowerInputType:  inputTypeFile,
		OutputUID:       -1,
		OutputGID:       -1,
	}
}
