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

package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/signbatch/signbatch/internal/bridge"
	"github.com/signbatch/signbatch/internal/signtool"
)

type fakeOps struct {
	verify    func(path string) signtool.SignatureInfo
	sign      func(path string) error
	timestamp func(path string) error
}

func (f *fakeOps) Verify(_ context.Context, path string) signtool.SignatureInfo {
	return f.verify(path)
}

func (f *fakeOps) Sign(_ context.Context, path, _, _ string, _ bool, _ string) error {
	return f.sign(path)
}

func (f *fakeOps) Timestamp(_ context.Context, path, _ string) error {
	return f.timestamp(path)
}

func verifyTasks(paths ...string) []Task {
	out := make([]Task, 0, len(paths))
	for _, p := range paths {
		out = append(out, Task{Path: p, Kind: KindVerify})
	}
	return out
}

// classifierFor maps the three canonical verify outcomes used across these
// tests.
func classifierFor(t *testing.T) func(path string) signtool.SignatureInfo {
	t.Helper()
	return func(path string) signtool.SignatureInfo {
		switch {
		case strings.Contains(path, "missing"):
			return signtool.Classify("SignTool Error: No signature found.\n")
		case strings.Contains(path, "selfsigned"):
			return signtool.Classify("Issued to: Dev\nIssued by: Dev\n" +
				"terminated in a root certificate which is not trusted\n")
		default:
			return signtool.Classify("Issued to: Vendor\nIssued by: DigiCert CA\n" +
				"Successfully verified: ok\n")
		}
	}
}

func TestVerifyBatchAggregates(t *testing.T) {
	mb := bridge.New()
	d := &Dispatcher{Ops: &fakeOps{verify: classifierFor(t)}, Mailbox: mb}

	res := d.RunConcurrent(context.Background(), verifyTasks("missing.exe", "selfsigned.dll", "trusted.exe"), 3)

	if got := res.Count(signtool.StatusUnsigned); got != 1 {
		t.Errorf("unsigned = %d, want 1", got)
	}
	if got := res.Count(signtool.StatusSelfSigned); got != 1 {
		t.Errorf("self-signed = %d, want 1", got)
	}
	if got := res.Count(signtool.StatusTrusted); got != 1 {
		t.Errorf("trusted = %d, want 1", got)
	}
}

func TestConcurrentSingleWorkerMatchesSequential(t *testing.T) {
	paths := []string{"missing.exe", "selfsigned.dll", "trusted.exe", "trusted2.exe"}

	seq := &Dispatcher{Ops: &fakeOps{verify: classifierFor(t)}, Mailbox: bridge.New()}
	con := &Dispatcher{Ops: &fakeOps{verify: classifierFor(t)}, Mailbox: bridge.New()}

	sres := seq.RunSequential(context.Background(), verifyTasks(paths...))
	cres := con.RunConcurrent(context.Background(), verifyTasks(paths...), 1)

	for _, s := range []signtool.Status{
		signtool.StatusTrusted, signtool.StatusSelfSigned,
		signtool.StatusUnsigned, signtool.StatusInvalid, signtool.StatusUnknown,
	} {
		if sres.Count(s) != cres.Count(s) {
			t.Errorf("status %v: sequential %d, concurrent %d", s, sres.Count(s), cres.Count(s))
		}
	}
}

func TestSequentialProgress(t *testing.T) {
	mb := bridge.New()
	d := &Dispatcher{
		Ops:     &fakeOps{sign: func(string) error { return nil }},
		Mailbox: mb,
	}

	tasks := []Task{
		{Path: "a.exe", Kind: KindSign, PFXPath: "key.pfx", AddTimestamp: true, TimestampURL: "http://ts"},
		{Path: "b.exe", Kind: KindSign, PFXPath: "key.pfx", AddTimestamp: true, TimestampURL: "http://ts"},
		{Path: "c.exe", Kind: KindSign, PFXPath: "key.pfx", AddTimestamp: true, TimestampURL: "http://ts"},
	}
	d.RunSequential(context.Background(), tasks)

	events := mb.Drain()
	var total, steps int
	var order []string
	for _, e := range events {
		switch ev := e.(type) {
		case bridge.ProgressSet:
			total = ev.Total
		case bridge.ProgressStep:
			steps += ev.N
			if steps > total {
				t.Fatalf("progress %d exceeded total %d", steps, total)
			}
		case bridge.Log:
			if strings.Contains(ev.Text, "Sign:") {
				order = append(order, ev.Text)
			}
		}
	}
	if steps != len(tasks) {
		t.Errorf("steps = %d, want %d", steps, len(tasks))
	}
	want := []string{"[1/3] Sign: a.exe", "[2/3] Sign: b.exe", "[3/3] Sign: c.exe"}
	for i, w := range want {
		if i >= len(order) || order[i] != w {
			t.Fatalf("log order = %v, want %v", order, want)
		}
	}
}

func TestFailingTaskDoesNotHaltBatch(t *testing.T) {
	mb := bridge.New()
	d := &Dispatcher{
		Ops: &fakeOps{sign: func(path string) error {
			if strings.Contains(path, "bad") {
				return errors.New("SignTool Error: The file is corrupt")
			}
			return nil
		}},
		Mailbox: mb,
	}

	tasks := []Task{
		{Path: "good1.exe", Kind: KindSign},
		{Path: "bad.exe", Kind: KindSign},
		{Path: "good2.exe", Kind: KindSign},
	}
	res := d.RunSequential(context.Background(), tasks)

	if res.Succeeded() != 2 || res.Failed() != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 2/1", res.Succeeded(), res.Failed())
	}
	if err := res.Err(); err == nil || !strings.Contains(err.Error(), "bad.exe") {
		t.Errorf("Err() = %v, want aggregated failure naming bad.exe", err)
	}

	var summary string
	for _, e := range mb.Drain() {
		if l, ok := e.(bridge.Log); ok && strings.HasPrefix(l.Text, "Completed:") {
			summary = l.Text
		}
	}
	if summary != "Completed: 2 succeeded, 1 failed." {
		t.Errorf("summary = %q", summary)
	}
}

func TestConcurrentFailureDoesNotCancelSiblings(t *testing.T) {
	mb := bridge.New()
	d := &Dispatcher{
		Ops: &fakeOps{timestamp: func(path string) error {
			if strings.Contains(path, "bad") {
				return errors.New("tsa unreachable")
			}
			return nil
		}},
		Mailbox: mb,
	}

	tasks := []Task{
		{Path: "bad.exe", Kind: KindTimestamp, TimestampURL: "http://ts"},
		{Path: "a.exe", Kind: KindTimestamp, TimestampURL: "http://ts"},
		{Path: "b.exe", Kind: KindTimestamp, TimestampURL: "http://ts"},
		{Path: "c.exe", Kind: KindTimestamp, TimestampURL: "http://ts"},
	}
	res := d.RunConcurrent(context.Background(), tasks, 2)

	if res.Succeeded() != 3 || res.Failed() != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 3/1", res.Succeeded(), res.Failed())
	}

	steps := 0
	for _, e := range mb.Drain() {
		if s, ok := e.(bridge.ProgressStep); ok {
			steps += s.N
		}
	}
	if steps != len(tasks) {
		t.Errorf("steps = %d, want %d", steps, len(tasks))
	}
}
