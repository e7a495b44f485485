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

package createcert

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/signbatch/signbatch/internal/config"
	"github.com/signbatch/signbatch/internal/executor"
	sbio "github.com/signbatch/signbatch/internal/io"
	"github.com/signbatch/signbatch/internal/session"
	"github.com/signbatch/signbatch/internal/signtool"
)

type options struct {
	Config *config.Config

	FlagName     string
	FlagEmail    string
	FlagPassword string
	FlagCEROnly  bool
	FlagOut      string
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.FlagName, "name", "n", "", "certificate common name")
	cmd.Flags().StringVar(&o.FlagEmail, "email", "", "email address to include in the subject")
	cmd.Flags().StringVarP(&o.FlagPassword, "password", "p", "", "private key password set when generating the key")
	cmd.Flags().BoolVar(&o.FlagCEROnly, "cer-only", false, "export only the certificate (.cer), no private key bundle")
	cmd.Flags().StringVarP(&o.FlagOut, "out", "o", "", "output path (default Key.pfx or Key.cer in the current directory)")
	cmd.MarkFlagRequired("name") // nolint:errcheck
}

func New(cfg *config.Config) *cobra.Command {
	o := &options{Config: cfg}
	cmd := &cobra.Command{
		Use:   "create-cert",
		Short: "generate a self-signed signing certificate as a PFX bundle or bare CER",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := sbio.New(o.Config.LogPath)
			defer s.Close()
			return s.Wrap(func() error {
				return o.Run(cmd, s)
			})
		},
	}
	o.AddFlags(cmd)
	return cmd
}

func (o *options) Run(cmd *cobra.Command, s *sbio.Streams) error {
	sess, err := session.New(o.Config, s)
	if err != nil {
		return err
	}
	if err := sess.CheckCertTools(); err != nil {
		return err
	}

	exec := sess.Executor
	defer exec.Cleanup()

	ctx := cmd.Context()
	if err := exec.CreateCertificate(ctx, executor.SigningConfig{
		Name:  o.FlagName,
		Email: o.FlagEmail,
	}); err != nil {
		return err
	}

	var produced string
	if o.FlagCEROnly {
		produced, err = exec.CreateCertificateFile()
		if err != nil {
			return err
		}
	} else {
		produced, err = o.createPFX(ctx, exec, s)
		if err != nil {
			return err
		}
	}

	out := o.FlagOut
	if out == "" {
		out = executor.PFXName
		if o.FlagCEROnly {
			out = executor.CERName
		}
	}
	if err := copyFile(produced, out); err != nil {
		return errors.Wrap(err, "exporting certificate")
	}
	os.Remove(produced)

	fmt.Fprintln(s.Out, out)
	fmt.Fprintln(s.Err, "Note: self-signed certificates are not trusted unless installed manually.")
	return nil
}

// createPFX bundles the key and certificate, re-prompting while pvk2pfx
// rejects the private key password.
func (o *options) createPFX(ctx context.Context, exec *executor.Executor, s *sbio.Streams) (string, error) {
	password := o.FlagPassword
	for {
		pfx, err := exec.CreatePFX(ctx, password)
		if errors.Is(err, executor.ErrPVKPassword) {
			pw, ok := s.ReadPassword("Private key password:")
			if !ok {
				return "", errors.Wrap(signtool.ErrCancelled, "private key password required")
			}
			password = pw
			continue
		}
		if err != nil {
			return "", err
		}
		return pfx, nil
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
