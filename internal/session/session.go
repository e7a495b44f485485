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

// Package session wires the orchestrator for one command invocation: tool
// runners, credential store, executor, dispatcher, mailbox and console.
// Nothing here is a process-wide singleton; the credential cache lives for
// exactly one session.
package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/signbatch/signbatch/internal/bridge"
	"github.com/signbatch/signbatch/internal/config"
	"github.com/signbatch/signbatch/internal/console"
	"github.com/signbatch/signbatch/internal/credential"
	"github.com/signbatch/signbatch/internal/dispatch"
	"github.com/signbatch/signbatch/internal/executor"
	sbio "github.com/signbatch/signbatch/internal/io"
	"github.com/signbatch/signbatch/internal/signtool"
)

// Tool executable names looked up in the tools directory.
const (
	SigntoolName = "signtool.exe"
	MakeCertName = "makecert.exe"
	Cert2SPCName = "cert2spc.exe"
	Pvk2PFXName  = "pvk2pfx.exe"
)

type Session struct {
	Config     *config.Config
	Streams    *sbio.Streams
	Mailbox    *bridge.Mailbox
	Executor   *executor.Executor
	Dispatcher *dispatch.Dispatcher
	Console    *console.Console

	certTools []*signtool.Tool
}

// New locates the external tools and assembles the orchestrator. A missing
// signtool is fatal here; the certificate tools are only checked by the
// operations that need them.
func New(cfg *config.Config, s *sbio.Streams) (*Session, error) {
	st := signtool.Locate(cfg.ToolsDir, SigntoolName)
	if err := st.Check(); err != nil {
		return nil, errors.Wrapf(err, "tools directory %q", cfg.ToolsDir)
	}
	st.Dir = cfg.ToolsDir

	mb := bridge.New()
	makeCert := locateIn(cfg.ToolsDir, MakeCertName)
	cert2spc := locateIn(cfg.ToolsDir, Cert2SPCName)
	pvk2pfx := locateIn(cfg.ToolsDir, Pvk2PFXName)
	exec := &executor.Executor{
		Signtool: st,
		MakeCert: makeCert,
		Cert2SPC: cert2spc,
		Pvk2PFX:  pvk2pfx,
		Resolver: &credential.Resolver{
			Store:  credential.NewStore(),
			Prompt: mb.AskPassword,
		},
		Digest:  cfg.Digest,
		WorkDir: cfg.ToolsDir,
	}

	return &Session{
		Config:     cfg,
		Streams:    s,
		Mailbox:    mb,
		Executor:   exec,
		Dispatcher: &dispatch.Dispatcher{Ops: exec, Mailbox: mb},
		Console:    console.New(s),
		certTools:  []*signtool.Tool{makeCert, cert2spc, pvk2pfx},
	}, nil
}

func locateIn(toolsDir, name string) *signtool.Tool {
	t := signtool.Locate(toolsDir, name)
	t.Dir = toolsDir
	return t
}

// RunBatch executes fn on a worker goroutine while the calling goroutine
// drains the mailbox. Returns when the batch posts completion.
func (s *Session) RunBatch(ctx context.Context, fn func()) {
	go func() {
		defer s.Mailbox.Post(bridge.EnableControls{})
		fn()
	}()
	s.Console.Run(ctx, s.Mailbox)
}

// GatherFiles resolves batch inputs to absolute paths and filters them
// against the supported-extension allow-list. Unsupported files come back in
// skipped so the caller can report them; a missing file is an error.
func GatherFiles(args []string) (files, skipped []string, err error) {
	for _, a := range args {
		p, aerr := filepath.Abs(a)
		if aerr != nil {
			p = a
		}
		if fi, serr := os.Stat(p); serr != nil || fi.IsDir() {
			return nil, nil, errors.Errorf("no such file: %s", a)
		}
		if !config.IsSupported(p) {
			skipped = append(skipped, p)
			continue
		}
		files = append(files, p)
	}
	if len(files) == 0 {
		return nil, nil, errors.New("no files with a supported extension")
	}
	return files, skipped, nil
}

// CheckCertTools verifies the certificate-creation tools are present.
func (s *Session) CheckCertTools() error {
	for _, t := range s.certTools {
		if err := t.Check(); err != nil {
			return errors.Wrapf(err, "tools directory %q", s.Config.ToolsDir)
		}
	}
	return nil
}
