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

// Package console is the single consumer of the event mailbox: it renders
// log lines and progress, and it alone shows interactive prompts. Workers
// never print.
package console

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/signbatch/signbatch/internal/bridge"
	sbio "github.com/signbatch/signbatch/internal/io"
)

const pollInterval = 100 * time.Millisecond

type Console struct {
	streams *sbio.Streams
	log     *logrus.Logger

	done  int
	total int
}

func New(s *sbio.Streams) *Console {
	log := logrus.New()
	log.SetOutput(s.Err)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	return &Console{streams: s, log: log}
}

// Run drains the mailbox until an EnableControls event arrives, signalling
// the batch is finished, or ctx is cancelled. Must be called from the
// goroutine that owns the terminal.
func (c *Console) Run(ctx context.Context, mb *bridge.Mailbox) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush(mb)
			return
		case <-mb.Wake():
		case <-ticker.C:
		}
		for _, e := range mb.Drain() {
			if c.handle(e) {
				return
			}
		}
	}
}

func (c *Console) flush(mb *bridge.Mailbox) {
	for _, e := range mb.Drain() {
		c.handle(e)
	}
}

// handle processes one event, reporting whether the batch is complete.
// Unrecognized event kinds are ignored.
func (c *Console) handle(e bridge.Event) bool {
	switch ev := e.(type) {
	case bridge.Log:
		switch ev.Severity {
		case bridge.SeverityError:
			c.log.Error(ev.Text)
		case bridge.SeverityWarn:
			c.log.Warn(ev.Text)
		default:
			c.log.Info(ev.Text)
		}
	case bridge.ProgressSet:
		c.done, c.total = ev.Done, ev.Total
	case bridge.ProgressStep:
		c.done += ev.N
		if c.total > 0 {
			fmt.Fprintf(c.streams.TTYOut, "\rprogress: %d/%d", c.done, c.total)
			if c.done >= c.total {
				fmt.Fprintln(c.streams.TTYOut)
			}
		}
	case *bridge.PromptPassword:
		pw, ok := c.streams.ReadPassword(ev.Title)
		if !ok {
			ev.Respond(nil)
			break
		}
		ev.Respond(&pw)
	case bridge.EnableControls:
		return true
	}
	return false
}
