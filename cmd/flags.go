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

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var v = viper.New()

func bindFlags(flags *pflag.FlagSet) error {
	def := defaultConfig()

	flags.String("diff-type", def.DiffType, "Union filesystem deletion convention to emit: overlay or aufs")
	flags.String("output-type", def.OutputType, "Output sink: tar, tgz or file")
	flags.String("merged-input-type", def.MergedInputType, "How to read the merged operand: file or tar")
	flags.String("lower-input-type", def.LowerInputType, "How to read the lower operand: file or tar")
	flags.StringP("output", "o", def.Output, "Output destination; defaults to stdout for tar/tgz")
	flags.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	flags.BoolP("quiet", "q", def.Quiet, "Suppress all logging except errors")
	flags.BoolP("force", "f", def.Force, "Overwrite an existing output destination")
	flags.Bool("dry-run", def.DryRun, "Describe what would be written without writing it")
	flags.Bool("input-best-effort", def.InputBestEffort, "Log and skip input errors instead of aborting")
	flags.Bool("output-best-effort", def.OutputBestEffort, "Log and skip output errors instead of aborting")
	flags.BoolP("preserve-owners", "p", def.PreserveOwners, "Preserve uid/gid when writing to a live filesystem")
	flags.Int("output-uid", def.OutputUID, "Override the uid written for every entry (-1 leaves it as-is)")
	flags.Int("output-gid", def.OutputGID, "Override the gid written for every entry (-1 leaves it as-is)")
	flags.Bool("keep-mtime", def.KeepMtime, "Preserve source mtimes instead of scrubbing them to zero")

	return v.BindPFlags(flags)
}

func loadConfig() (Config, error) {
	v.SetEnvPrefix("UNIONDIFF")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := defaultConfig()
	decodeHook := mapstructure.ComposeDecodeHookFunc(mapstructure.StringToTimeDurationHookFunc())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func init() {
	cobra.EnableCommandSorting = false
}
