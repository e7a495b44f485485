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

package timestamp

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/signbatch/signbatch/internal/bridge"
	"github.com/signbatch/signbatch/internal/config"
	"github.com/signbatch/signbatch/internal/dispatch"
	sbio "github.com/signbatch/signbatch/internal/io"
	"github.com/signbatch/signbatch/internal/session"
)

type options struct {
	Config *config.Config

	FlagTimestampURL string
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.FlagTimestampURL, "timestamp-url", o.Config.TimestampURL, "timestamp authority URL")
}

func New(cfg *config.Config) *cobra.Command {
	o := &options{Config: cfg}
	cmd := &cobra.Command{
		Use:   "timestamp <file>...",
		Short: "attach trust timestamps to already-signed files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := sbio.New(o.Config.LogPath)
			defer s.Close()
			return s.Wrap(func() error {
				return o.Run(cmd, s, args)
			})
		},
	}
	o.AddFlags(cmd)
	return cmd
}

func (o *options) Run(cmd *cobra.Command, s *sbio.Streams, args []string) error {
	files, skipped, err := session.GatherFiles(args)
	if err != nil {
		return err
	}
	sess, err := session.New(o.Config, s)
	if err != nil {
		return err
	}
	for _, sk := range skipped {
		sess.Mailbox.Logf(bridge.SeverityWarn, "Skipping unsupported file: %s", filepath.Base(sk))
	}

	tasks := make([]dispatch.Task, 0, len(files))
	for _, f := range files {
		tasks = append(tasks, dispatch.Task{
			Path:         f,
			Kind:         dispatch.KindTimestamp,
			TimestampURL: o.FlagTimestampURL,
		})
	}

	// Always sequential; every task hits the timestamp authority.
	ctx := cmd.Context()
	var res *dispatch.BatchResult
	sess.RunBatch(ctx, func() {
		res = sess.Dispatcher.RunSequential(ctx, tasks)
	})
	if res.Failed() > 0 {
		return errors.Errorf("%d of %d files failed", res.Failed(), len(tasks))
	}
	return nil
}
