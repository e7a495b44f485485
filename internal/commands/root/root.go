//
// Copyright 2024 The Signbatch Authors.
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

package root

import (
	"github.com/spf13/cobra"

	"github.com/signbatch/signbatch/internal/commands/createcert"
	"github.com/signbatch/signbatch/internal/commands/sign"
	"github.com/signbatch/signbatch/internal/commands/timestamp"
	"github.com/signbatch/signbatch/internal/commands/verify"
	"github.com/signbatch/signbatch/internal/commands/version"
	"github.com/signbatch/signbatch/internal/config"
)

type options struct {
	Config *config.Config

	FlagToolsDir string
	FlagLog      string
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.FlagToolsDir, "tools-dir", "", "directory containing signtool and the certificate tools")
	cmd.PersistentFlags().StringVar(&o.FlagLog, "log", "", "path to tee output to")
}

func New(cfg *config.Config) *cobra.Command {
	o := &options{Config: cfg}

	rootCmd := &cobra.Command{
		Use:               "signbatch",
		Short:             "Batch signing, timestamping and verification with the Windows SDK tools",
		DisableAutoGenTag: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Flags beat environment and defaults.
			if o.FlagToolsDir != "" {
				cfg.ToolsDir = o.FlagToolsDir
			}
			if o.FlagLog != "" {
				cfg.LogPath = o.FlagLog
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(version.New(cfg))
	rootCmd.AddCommand(verify.New(cfg))
	rootCmd.AddCommand(sign.New(cfg))
	rootCmd.AddCommand(timestamp.New(cfg))
	rootCmd.AddCommand(createcert.New(cfg))
	o.AddFlags(rootCmd)

	return rootCmd
}
