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

package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/signbatch/signbatch/internal/bridge"
	sbio "github.com/signbatch/signbatch/internal/io"
)

func testStreams() (*sbio.Streams, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	return &sbio.Streams{Out: buf, Err: buf, TTYOut: buf}, buf
}

func TestRunStopsOnEnableControls(t *testing.T) {
	s, buf := testStreams()
	c := New(s)
	mb := bridge.New()

	mb.Logf(bridge.SeverityInfo, "starting batch")
	mb.Logf(bridge.SeverityError, "  ✗ something failed")
	mb.Post(bridge.EnableControls{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(context.Background(), mb)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on EnableControls")
	}

	out := buf.String()
	if !strings.Contains(out, "starting batch") {
		t.Errorf("info line missing from output: %q", out)
	}
	if !strings.Contains(out, "something failed") {
		t.Errorf("error line missing from output: %q", out)
	}
}

func TestRunDeclinesPromptWithoutTTY(t *testing.T) {
	s, _ := testStreams()
	c := New(s)
	mb := bridge.New()

	go func() {
		// Worker side: a declined prompt comes back nil.
		if got := mb.AskPassword("Enter PFX password (key.pfx):"); got != nil {
			t.Errorf("AskPassword = %q, want nil", *got)
		}
		mb.Post(bridge.EnableControls{})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Run(ctx, mb)
	if ctx.Err() != nil {
		t.Fatal("Run timed out waiting for prompt handling")
	}
}

func TestProgressRendering(t *testing.T) {
	s, buf := testStreams()
	c := New(s)
	mb := bridge.New()

	mb.SetProgress(0, 2)
	mb.Step()
	mb.Step()
	mb.Post(bridge.EnableControls{})
	c.Run(context.Background(), mb)

	out := buf.String()
	if !strings.Contains(out, "1/2") || !strings.Contains(out, "2/2") {
		t.Errorf("progress output = %q", out)
	}
}
