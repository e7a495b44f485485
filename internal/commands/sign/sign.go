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

package sign

import (
	"os"
	"path/filepath"
	"strings"

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

	FlagPFX          string
	FlagPassword     string
	FlagTimestamp    bool
	FlagTimestampURL string
	FlagConcurrency  int
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.FlagPFX, "pfx", "f", "", "path to the PFX signing certificate")
	cmd.Flags().StringVarP(&o.FlagPassword, "password", "p", "", "PFX password; prompted for on demand when omitted")
	cmd.Flags().BoolVar(&o.FlagTimestamp, "timestamp", true, "attach a trust timestamp after signing")
	cmd.Flags().StringVar(&o.FlagTimestampURL, "timestamp-url", o.Config.TimestampURL, "timestamp authority URL")
	cmd.Flags().IntVarP(&o.FlagConcurrency, "concurrency", "j", o.Config.Concurrency, "number of files signed in parallel (only without --timestamp)")
	cmd.MarkFlagRequired("pfx") // nolint:errcheck
}

func New(cfg *config.Config) *cobra.Command {
	o := &options{Config: cfg}
	cmd := &cobra.Command{
		Use:   "sign <file>...",
		Short: "sign a batch of files with a PFX certificate, timestamping by default",
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
	pfx, err := resolvePFX(o.FlagPFX)
	if err != nil {
		return err
	}
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
			Kind:         dispatch.KindSign,
			PFXPath:      pfx,
			Password:     o.FlagPassword,
			AddTimestamp: o.FlagTimestamp,
			TimestampURL: o.FlagTimestampURL,
		})
	}

	ctx := cmd.Context()
	var res *dispatch.BatchResult
	if o.FlagTimestamp {
		// Timestamp authorities rate-limit aggressively; one request at a
		// time.
		sess.Mailbox.Logf(bridge.SeverityInfo, "Signing with timestamp runs one file at a time.")
		sess.RunBatch(ctx, func() {
			res = sess.Dispatcher.RunSequential(ctx, tasks)
		})
	} else {
		sess.RunBatch(ctx, func() {
			res = sess.Dispatcher.RunConcurrent(ctx, tasks, o.FlagConcurrency)
		})
	}
	if res.Failed() > 0 {
		return errors.Errorf("%d of %d files failed", res.Failed(), len(tasks))
	}
	return nil
}

// resolvePFX validates the certificate path up front so a bad path fails
// before any file is touched.
func resolvePFX(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pfx") {
		return "", errors.Errorf("certificate must be a .pfx file: %s", path)
	}
	p, err := filepath.Abs(path)
	if err != nil {
		p = path
	}
	if fi, err := os.Stat(p); err != nil || fi.IsDir() {
		return "", errors.Errorf("no such certificate: %s", path)
	}
	return p, nil
}
