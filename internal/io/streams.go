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

package io

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/mattn/go-tty"
)

// Streams bundles the process streams with a TTY for interactive prompts.
// Password prompts must go through the TTY so they work even when stdout is
// redirected.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	TTYOut io.Writer

	tty   *tty.TTY
	close []func() error
}

func New(logPath string) *Streams {
	s := &Streams{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}

	if logPath != "" {
		// Keep a copy of everything we print; batch output scrolls away
		// fast and failures are easier to report from a file.
		if f, err := os.Create(logPath); err == nil {
			s.close = append(s.close, f.Close)
			s.Err = io.MultiWriter(s.Err, f)
		}
	}

	// A TTY may not be available in all environments (e.g. in CI), so only
	// set it if we can actually open it.
	t, err := tty.Open()
	if err == nil {
		s.close = append(s.close, t.Close)
		s.tty = t
		s.TTYOut = t.Output()
	} else {
		s.TTYOut = s.Err
	}
	return s
}

// ReadPassword prompts on the TTY and reads a password without echo. The
// second return is false when no TTY is available or the user aborted.
func (s *Streams) ReadPassword(title string) (string, bool) {
	if s.tty == nil {
		return "", false
	}
	fmt.Fprint(s.TTYOut, title+" ")
	pw, err := s.tty.ReadPassword()
	fmt.Fprintln(s.TTYOut)
	if err != nil {
		return "", false
	}
	return pw, true
}

func (s *Streams) Wrap(fn func() error) error {
	// Log any panics to ttyout, since otherwise they may be lost when
	// output is redirected.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(s.TTYOut, r, string(debug.Stack()))
		}
	}()

	if err := fn(); err != nil {
		fmt.Fprintln(s.TTYOut, err)
		return err
	}
	return nil
}

func (s *Streams) Close() error {
	for _, fn := range s.close {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
